package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusReport describes the local mirror of one project.
type statusReport struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	Archived    bool   `json:"archived"`
	Database    string `json:"database"`
	Table       string `json:"table"`
	TableExists bool   `json:"table_exists"`
	Rows        int    `json:"rows"`
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the project, its table and how many rows are stored",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			project, err := s.sync.Project(ctx)
			if err != nil {
				return err
			}
			table, err := s.sync.TableName(ctx)
			if err != nil {
				return err
			}
			report := statusReport{
				ProjectID:   project.ID,
				ProjectName: project.Name,
				Archived:    project.Archived,
				Database:    s.store.Path(),
				Table:       table,
			}
			report.TableExists, err = s.store.TableExists(ctx, table)
			if err != nil {
				return err
			}
			if report.TableExists {
				ids, err := s.sync.LocalIDs(ctx)
				if err != nil {
					return err
				}
				report.Rows = len(ids)
			}

			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project:  %s (%s)\n", report.ProjectName, report.ProjectID)
			if report.Archived {
				fmt.Fprintln(out, "          archived")
			}
			fmt.Fprintf(out, "database: %s\n", report.Database)
			if !report.TableExists {
				fmt.Fprintf(out, "table:    %s (not created)\n", report.Table)
				return nil
			}
			fmt.Fprintf(out, "table:    %s (%d rows)\n", report.Table, report.Rows)
			return nil
		},
	}
}
