package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

func newTasksCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Print the project's remote tasks without writing them",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			tasks, err := s.sync.Tasks(ctx)
			if err != nil {
				return err
			}
			for _, w := range s.sync.Warnings() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			if flags.jsonMode {
				if tasks == nil {
					tasks = []types.Record{}
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			for _, t := range tasks {
				name, _ := t["name"].(string)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID(), name)
			}
			return nil
		},
	}
}
