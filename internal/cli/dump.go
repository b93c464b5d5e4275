package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/asana2sql/internal/snapshot"
)

func newDumpCmd(flags *rootFlags) *cobra.Command {
	var inProject, jsonlPath string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the stored rows as JSON",
		Long: "Dump prints every row of the project table as a JSON array of objects,\n" +
			"or an empty array when the table or, with --in-project, the membership\n" +
			"table has not been created yet.\n" +
			"With --in-project, only rows whose tasks belong to the given project\n" +
			"according to the membership table are printed. With --jsonl, the rows\n" +
			"are written to a JSON Lines file instead, replacing it atomically.\n\n" +
			"Example:\n" +
			"  asana2sql dump --project-id 1200 --table-name launch\n" +
			"  asana2sql dump --project-id 1200 --in-project 1300\n" +
			"  asana2sql dump --project-id 1200 --jsonl launch.jsonl",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, flags, false)
			if err != nil {
				return err
			}
			defer s.Close()

			table, err := s.sync.TableName(ctx)
			if err != nil {
				return err
			}
			exists, err := s.store.TableExists(ctx, table)
			if err != nil {
				return err
			}
			if exists && inProject != "" {
				// Memberships are recorded from the first export on.
				exists, err = s.store.TableExists(ctx, s.workspace.ProjectMembershipsTableName())
				if err != nil {
					return err
				}
			}

			rows := []map[string]any{}
			switch {
			case !exists:
			case inProject != "":
				rows, err = s.sync.DBSelectAllInProject(ctx, inProject)
			default:
				rows, err = s.sync.DBSelectAll(ctx)
			}
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []map[string]any{}
			}

			if jsonlPath == "" {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			if err := snapshot.WriteJSONL(jsonlPath, rows); err != nil {
				return err
			}
			s.logger.WithFields(logrus.Fields{"table": table, "count": len(rows)}).Info("wrote snapshot")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(rows), jsonlPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inProject, "in-project", "", "only rows of tasks that belong to this project")
	cmd.Flags().StringVar(&jsonlPath, "jsonl", "", "write the rows to this JSON Lines file")
	return cmd
}
