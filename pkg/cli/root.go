package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root cobra command for the site-backuper CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "site-backuper",
		Short:         "Back up, restore and recovery-test a static site against object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().String("config", "./config.json", "Path to configuration file")
	cmd.PersistentFlags().Duration("timeout", 0, "Deadline for the whole operation (0 = none)")

	cmd.AddCommand(newBackupCmd(stdout))
	cmd.AddCommand(newRestoreCmd(stdout))
	cmd.AddCommand(newDisasterCmd(stdout))
	cmd.AddCommand(newStatusCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
