package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/asana2sql/internal/config"
	"github.com/mesh-intelligence/asana2sql/internal/fields"
	"github.com/mesh-intelligence/asana2sql/internal/logging"
	"github.com/mesh-intelligence/asana2sql/internal/paths"
	"github.com/mesh-intelligence/asana2sql/internal/remote"
	"github.com/mesh-intelligence/asana2sql/internal/sqlite"
	"github.com/mesh-intelligence/asana2sql/internal/sync"
	"github.com/mesh-intelligence/asana2sql/internal/workspace"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// session is everything one command needs: resolved config, logger, an
// attached database and a Synchronizer for the configured project.
type session struct {
	cfg       types.Config
	configDir string
	logger    *logrus.Logger
	logCloser io.Closer
	store     *sqlite.Backend
	workspace *workspace.Workspace
	sync      *sync.Synchronizer
}

// loadConfig resolves the config directory and loads the layered config.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (types.Config, string, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, "", fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir, cmd.Root().PersistentFlags())
	if err != nil {
		return types.Config{}, "", err
	}
	return cfg, configDir, nil
}

// openSession loads configuration and wires the components. The remote is
// needed by every command that touches Asana and by any command that has
// to derive the table name from the project; offline read-back with a
// configured table name skips the access token check. The caller must
// close the session.
func openSession(ctx context.Context, cmd *cobra.Command, flags *rootFlags, needRemote bool) (*session, error) {
	cfg, configDir, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}

	if needRemote || cfg.TableName == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else if cfg.ProjectID == "" {
		return nil, types.ErrProjectIDEmpty
	}

	logger, logCloser, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, configDir: configDir, logger: logger, logCloser: logCloser}

	s.store, err = sqlite.Open(cfg.Database, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The membership table is created with the project table, once the
	// project is known to exist.
	s.workspace = workspace.New(s.store, cfg.MembershipsTable)

	client := remote.NewHTTPClient(cfg.Asana, logger)
	source := remote.NewSource(client, logger)
	s.sync, err = sync.New(sync.Config{
		ProjectID:       cfg.ProjectID,
		TableName:       cfg.TableName,
		IncludeSubtasks: cfg.WithSubtasks,
	}, source, s.store, s.workspace, fields.Default(s.workspace), logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"project_id": cfg.ProjectID,
		"database":   cfg.Database,
	}).Debug("session opened")
	return s, nil
}

// Close detaches the database and releases the log file.
func (s *session) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Detach())
	}
	if s.logCloser != nil {
		errs = append(errs, s.logCloser.Close())
	}
	return errors.Join(errs...)
}
