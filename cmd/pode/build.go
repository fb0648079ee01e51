package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the project's main.go into a server binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "pode-server"
			}
			goBuild := exec.Command("go", "build", "-o", output, ".")
			goBuild.Stdout = os.Stdout
			goBuild.Stderr = os.Stderr
			return goBuild.Run()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output binary path (default pode-server)")
	return cmd
}
