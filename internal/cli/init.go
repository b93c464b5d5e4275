package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/asana2sql/internal/config"
	"github.com/mesh-intelligence/asana2sql/internal/logging"
	"github.com/mesh-intelligence/asana2sql/internal/paths"
	"github.com/mesh-intelligence/asana2sql/internal/sqlite"
	"github.com/mesh-intelligence/asana2sql/internal/workspace"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file and create the database",
		Long: "Init writes config.yaml to the config directory, seeded from the global\n" +
			"flags, unless one exists. It then creates the database file and the\n" +
			"membership table. The access token is never written; set\n" +
			"ASANA2SQL_ASANA_ACCESS_TOKEN instead.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, flags)
		},
	}
}

func runInit(cmd *cobra.Command, flags *rootFlags) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}

	seed := types.Config{
		ProjectID:    flags.projectID,
		TableName:    flags.tableName,
		WithSubtasks: flags.withSubtasks,
		DataDir:      flags.dataDir,
		Database:     flags.database,
	}
	wrote, err := config.WriteFile(configDir, seed)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cfg, _, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := sqlite.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Detach()
	if err := workspace.New(store, cfg.MembershipsTable).CreateTables(cmd.Context()); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		return printJSON(out, map[string]any{
			"config":         config.Path(configDir),
			"config_written": wrote,
			"database":       cfg.Database,
		})
	}
	if wrote {
		fmt.Fprintf(out, "wrote %s\n", config.Path(configDir))
	} else {
		fmt.Fprintf(out, "kept existing %s\n", config.Path(configDir))
	}
	fmt.Fprintf(out, "database %s ready\n", cfg.Database)
	return nil
}
