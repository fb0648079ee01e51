package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func newTestCommand() *cobra.Command {
	var coverProfile string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the project's test suite, optionally emitting a coverage profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := []string{"test", "./..."}
			if coverProfile != "" {
				goArgs = append(goArgs, "-coverprofile", coverProfile)
			}
			goTest := exec.Command("go", goArgs...)
			goTest.Stdout = os.Stdout
			goTest.Stderr = os.Stderr
			goTest.Env = os.Environ()
			return goTest.Run()
		},
	}
	cmd.Flags().StringVar(&coverProfile, "coverprofile", os.Getenv("PODE_COVERAGE_FILE"), "coverage profile output path")
	return cmd
}
