package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

func newRestartCommand() *cobra.Command {
	var varsDir string
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Signal a running \"pode start\" supervised server to restart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if varsDir == "" {
				varsDir = "vars"
			}
			pid, err := readPidFile(varsDir)
			if err != nil {
				return fmt.Errorf("no running server found: %w", err)
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := proc.Signal(syscall.SIGHUP); err != nil {
				return fmt.Errorf("signal pid %d: %w", pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent restart signal to pid %d\n", pid)
			return nil
		},
	}
	cmd.Flags().StringVar(&varsDir, "vars", "", "directory containing the pid file (default ./vars)")
	return cmd
}
