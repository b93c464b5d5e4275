package types

import (
	"errors"
	"strings"
	"time"
)

// Config holds the resolved settings for one synchronization run.
type Config struct {
	ProjectID        string `json:"project_id" yaml:"project_id" mapstructure:"project_id"`
	TableName        string `json:"table_name" yaml:"table_name" mapstructure:"table_name"`
	WithSubtasks     bool   `json:"with_subtasks" yaml:"with_subtasks" mapstructure:"with_subtasks"`
	DataDir          string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Database         string `json:"database" yaml:"database" mapstructure:"database"`
	MembershipsTable string `json:"memberships_table" yaml:"memberships_table" mapstructure:"memberships_table"`

	Asana AsanaConfig `json:"asana" yaml:"asana" mapstructure:"asana"`
	Log   LogConfig   `json:"log" yaml:"log" mapstructure:"log"`
}

// AsanaConfig configures the remote API client.
type AsanaConfig struct {
	AccessToken string        `json:"-" yaml:"access_token" mapstructure:"access_token"`
	BaseURL     string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	File   string `json:"file" yaml:"file" mapstructure:"file"`
}

// Default values.
const (
	DefaultBaseURL          = "https://app.asana.com/api/1.0"
	DefaultTimeout          = 30 * time.Second
	DefaultMembershipsTable = "project_memberships"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Config validation errors.
var (
	ErrProjectIDEmpty   = errors.New("project_id must not be empty")
	ErrAccessTokenEmpty = errors.New("asana.access_token must not be empty")
	ErrDatabaseEmpty    = errors.New("database must not be empty")
	ErrLogFormatUnknown = errors.New("unknown log format")
)

// Validate checks the settings a remote run needs. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return ErrProjectIDEmpty
	}
	if c.Asana.AccessToken == "" {
		return ErrAccessTokenEmpty
	}
	if c.Database == "" {
		return ErrDatabaseEmpty
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return ErrLogFormatUnknown
	}
	return nil
}
