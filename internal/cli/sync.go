package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the project table if it does not exist",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.sync.CreateTable(ctx); err != nil {
				return err
			}
			table, err := s.sync.TableName(ctx)
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"table": table, "columns": s.sync.Columns()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", table)
			return nil
		},
	}
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write every remote task into the table without deleting",
		Long: "Export creates the table if needed and upserts every task of the project.\n" +
			"Rows for tasks that no longer exist remotely are kept; use synchronize to\n" +
			"remove them.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.sync.CreateTable(ctx); err != nil {
				return err
			}
			res, err := s.sync.Export(ctx)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), flags.jsonMode, summarize("export", res))
		},
	}
}

func newSynchronizeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "synchronize",
		Aliases: []string{"sync"},
		Short:   "Make the table match the remote project",
		Long: "Synchronize creates the table if needed, upserts every task of the\n" +
			"project and then deletes the rows of tasks the remote no longer reports.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.sync.CreateTable(ctx); err != nil {
				return err
			}
			res, err := s.sync.Synchronize(ctx)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), flags.jsonMode, summarize("synchronize", res))
		},
	}
}
