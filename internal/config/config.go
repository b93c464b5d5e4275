// Package config loads asana2sql settings from config.yaml, ASANA2SQL_*
// environment variables and command-line flags using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/asana2sql/internal/paths"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

const (
	fileName = "config"
	fileType = "yaml"

	// FileBase is the name of the configuration file inside the config
	// directory.
	FileBase = "config.yaml"

	// EnvPrefix prefixes every environment override; dots in keys become
	// underscores, so asana.access_token is ASANA2SQL_ASANA_ACCESS_TOKEN.
	EnvPrefix = "ASANA2SQL"
)

// Config keys.
const (
	KeyProjectID        = "project_id"
	KeyTableName        = "table_name"
	KeyWithSubtasks     = "with_subtasks"
	KeyDataDir          = "data_dir"
	KeyDatabase         = "database"
	KeyMembershipsTable = "memberships_table"
	KeyAccessToken      = "asana.access_token"
	KeyBaseURL          = "asana.base_url"
	KeyTimeout          = "asana.timeout"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyLogFile          = "log.file"
)

// FlagKeys maps command-line flag names to the config keys they override.
var FlagKeys = map[string]string{
	"project-id":    KeyProjectID,
	"table-name":    KeyTableName,
	"with-subtasks": KeyWithSubtasks,
	"data-dir":      KeyDataDir,
	"database":      KeyDatabase,
}

// defaultYAML is written to config.yaml on first run.
const defaultYAML = `# asana2sql configuration
# Every key can be overridden with an ASANA2SQL_ environment variable,
# e.g. ASANA2SQL_ASANA_ACCESS_TOKEN or ASANA2SQL_PROJECT_ID.

asana:
  # Personal access token (prefer the environment variable)
  # access_token:
  base_url: https://app.asana.com/api/1.0
  timeout: 30s

# Project to mirror
# project_id:

# Table name (optional; defaults to the project name)
# table_name:

with_subtasks: false

# Data directory and database file (optional)
# data_dir:
# database:

memberships_table: project_memberships

log:
  level: info
  format: text
  # file:
`

// Load reads config.yaml from configDir, creating the directory and a
// default file on first run, then layers environment variables and the
// flags in fs that were set on top. fs may be nil. The returned Config has
// DataDir and Database resolved to absolute paths.
func Load(configDir string, fs *pflag.FlagSet) (types.Config, error) {
	v, err := newViper(configDir, fs)
	if err != nil {
		return types.Config{}, err
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.DataDir, err = paths.ResolveDataDir("", cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.Database, err = paths.DatabasePath(cfg.Database, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve database: %w", err)
	}
	return cfg, nil
}

// Path returns the config file path inside configDir.
func Path(configDir string) string {
	return filepath.Join(configDir, FileBase)
}

func newViper(configDir string, fs *pflag.FlagSet) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fileName)
	v.SetConfigType(fileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// setDefaults registers every key so that Unmarshal sees environment
// overrides for keys absent from config.yaml.
func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyProjectID, "")
	v.SetDefault(KeyTableName, "")
	v.SetDefault(KeyWithSubtasks, false)
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyDatabase, "")
	v.SetDefault(KeyMembershipsTable, types.DefaultMembershipsTable)
	v.SetDefault(KeyAccessToken, "")
	v.SetDefault(KeyBaseURL, types.DefaultBaseURL)
	v.SetDefault(KeyTimeout, types.DefaultTimeout)
	v.SetDefault(KeyLogLevel, types.DefaultLogLevel)
	v.SetDefault(KeyLogFormat, types.DefaultLogFormat)
	v.SetDefault(KeyLogFile, "")
}

func ensureDefaultFile(configDir string) error {
	path := Path(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultYAML), 0o644)
}
