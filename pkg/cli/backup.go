package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newBackupCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the site directory and upload it to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, cleanup, err := buildKeeper(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := operationContext(cmd)
			defer cancel()

			rec, err := k.TriggerBackup(ctx)
			if err != nil {
				return err
			}

			printRecord(stdout, rec)
			return nil
		},
	}
}
