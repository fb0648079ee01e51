package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInstallCommand() *cobra.Command {
	var binary, destDir string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a built server binary into a destination directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if binary == "" {
				binary = "pode-server"
			}
			if destDir == "" {
				destDir = defaultInstallDir()
			}
			if err := os.MkdirAll(destDir, 0755); err != nil {
				return err
			}
			dest := filepath.Join(destDir, filepath.Base(binary))
			if err := copyExecutable(binary, dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s to %s\n", binary, dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&binary, "binary", "", "built binary to install (default pode-server)")
	cmd.Flags().StringVar(&destDir, "dest", "", "destination directory (default $HOME/.local/bin)")
	return cmd
}

func defaultInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "bin")
}

func copyExecutable(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
