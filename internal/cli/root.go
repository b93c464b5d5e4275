// Package cli implements the asana2sql command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/asana2sql/internal/sync"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values for one command tree.
type rootFlags struct {
	configDir    string
	dataDir      string
	projectID    string
	tableName    string
	withSubtasks bool
	database     string
	jsonMode     bool
}

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// NewRootCmd creates the top-level "asana2sql" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:   "asana2sql",
		Short: "Mirror an Asana project into a SQLite table",
		Long: "asana2sql fetches the tasks of one Asana project and keeps a SQLite table\n" +
			"in step with them: one row per task, one column per configured field.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.asana2sql-db)")
	pf.StringVar(&flags.projectID, "project-id", "", "Asana project to mirror")
	pf.StringVar(&flags.tableName, "table-name", "", "table name (default: the project name)")
	pf.BoolVar(&flags.withSubtasks, "with-subtasks", false, "also mirror the subtasks of every task")
	pf.StringVar(&flags.database, "database", "", "SQLite database file (default: <data dir>/asana.db)")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newInitCmd(&flags),
		newCreateCmd(&flags),
		newExportCmd(&flags),
		newSynchronizeCmd(&flags),
		newDumpCmd(&flags),
		newTasksCmd(&flags),
		newStatusCmd(&flags),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

// run executes root with args and returns the process exit code.
func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// exitCode maps configuration and invocation mistakes to exitUserError and
// everything else to exitSysError.
func exitCode(err error) int {
	var usage usageError
	switch {
	case errors.As(err, &usage),
		errors.Is(err, types.ErrProjectIDEmpty),
		errors.Is(err, types.ErrAccessTokenEmpty),
		errors.Is(err, types.ErrDatabaseEmpty),
		errors.Is(err, types.ErrLogFormatUnknown),
		errors.Is(err, types.ErrProjectNotFound),
		errors.Is(err, sync.ErrReservedTableName):
		return exitUserError
	default:
		return exitSysError
	}
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}
