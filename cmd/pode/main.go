// Command pode is the external CLI collaborator: start, restart, build,
// install, init, test. It is a thin operational wrapper around the
// engine package — a real deployment embeds engine in its own Go
// program to register endpoints/routes/auth methods, then calls
// (*engine.ServerContext).Start itself. This binary does not run a server
// of its own: it scaffolds such a program (init), builds and installs it
// (build, install), and starts, signals and tests the resulting binary
// (start, restart, test).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pode",
		Short:         "pode runs and manages a Pode multi-protocol application server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newInstallCommand())
	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newRestartCommand())
	cmd.AddCommand(newTestCommand())
	return cmd
}
