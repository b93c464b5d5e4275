package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// fileConfig is the structure written by WriteFile. Empty values are
// omitted so that defaults and environment overrides still apply.
type fileConfig struct {
	ProjectID        string    `yaml:"project_id,omitempty"`
	TableName        string    `yaml:"table_name,omitempty"`
	WithSubtasks     bool      `yaml:"with_subtasks"`
	DataDir          string    `yaml:"data_dir,omitempty"`
	Database         string    `yaml:"database,omitempty"`
	MembershipsTable string    `yaml:"memberships_table,omitempty"`
	Asana            fileAsana `yaml:"asana"`
	Log              fileLog   `yaml:"log"`
}

type fileAsana struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type fileLog struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// WriteFile writes cfg to config.yaml in configDir unless the file already
// exists, and reports whether it wrote. The access token is never written;
// it belongs in ASANA2SQL_ASANA_ACCESS_TOKEN.
func WriteFile(configDir string, cfg types.Config) (bool, error) {
	path := Path(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	fc := fileConfig{
		ProjectID:        cfg.ProjectID,
		TableName:        cfg.TableName,
		WithSubtasks:     cfg.WithSubtasks,
		DataDir:          cfg.DataDir,
		Database:         cfg.Database,
		MembershipsTable: orDefault(cfg.MembershipsTable, types.DefaultMembershipsTable),
		Asana: fileAsana{
			BaseURL: orDefault(cfg.Asana.BaseURL, types.DefaultBaseURL),
			Timeout: types.DefaultTimeout.String(),
		},
		Log: fileLog{
			Level:  orDefault(cfg.Log.Level, types.DefaultLogLevel),
			Format: orDefault(cfg.Log.Format, types.DefaultLogFormat),
			File:   cfg.Log.File,
		},
	}
	if cfg.Asana.Timeout > 0 {
		fc.Asana.Timeout = cfg.Asana.Timeout.String()
	}

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
