// Package cli implements the hive command-line interface. The serve command
// hosts the bridge over stdin and stdout, one call per line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
}

var flags rootFlags

// NewRootCmd creates the top-level "hive" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hive",
		Short: "Persistence bridge for a game server",
		Long: "hive answers textual calls from a game server with rows from its\n" +
			"object database, arbitrary SQL templates, and server time.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory for hive.db (default: platform data dir)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newCallCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		os.Exit(exitSuccess)
	}
	fmt.Fprintln(os.Stderr, "hive:", err)
	os.Exit(exitCode(err))
}

// sysError marks failures of the environment rather than of the input.
type sysError struct{ err error }

func (e sysError) Error() string { return e.err.Error() }
func (e sysError) Unwrap() error { return e.err }

func systemError(format string, args ...any) error {
	return sysError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var se sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}
