package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

func newStartCommand() *cobra.Command {
	var binary, varsDir string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the built server binary, supervising it until signaled",
		Long: "Start launches the server binary built by \"pode build\" as a child " +
			"process, records its pid, and forwards termination/restart signals " +
			"to it so \"pode restart\" has something to signal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if binary == "" {
				binary = "pode-server"
			}
			if varsDir == "" {
				varsDir = "vars"
			}
			absBinary, err := filepath.Abs(binary)
			if err != nil {
				return err
			}
			if _, err := os.Stat(absBinary); err != nil {
				return fmt.Errorf("server binary %q not found, run \"pode build\" first: %w", absBinary, err)
			}

			child := exec.Command(absBinary)
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			child.Stdin = os.Stdin
			if err := child.Start(); err != nil {
				return err
			}
			if err := writePidFile(varsDir, child.Process.Pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pode server started, pid %d\n", child.Process.Pid)

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			done := make(chan error, 1)
			go func() { done <- child.Wait() }()

			for {
				select {
				case sig := <-signals:
					_ = child.Process.Signal(sig)
					if sig == syscall.SIGHUP {
						continue // forwarded restart signal, keep supervising
					}
				case err := <-done:
					_ = os.Remove(pidFilePath(varsDir))
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&binary, "binary", "", "server binary to run (default pode-server)")
	cmd.Flags().StringVar(&varsDir, "vars", "", "directory for the pid file (default ./vars)")
	return cmd
}
