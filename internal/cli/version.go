package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the asana2sql release version.
const Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/asana2sql"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the asana2sql version",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "asana2sql v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
