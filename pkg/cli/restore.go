package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/williamokano/site_backuper/pkg/keeper"
	"github.com/williamokano/site_backuper/pkg/restore"
)

func newRestoreCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Reconstruct the site directory from the most recent snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			clean, _ := cmd.Flags().GetBool("clean")
			noSafety, _ := cmd.Flags().GetBool("no-safety-copy")

			k, cleanup, err := buildKeeper(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := operationContext(cmd)
			defer cancel()

			rec, err := k.TriggerRestore(ctx, restore.Options{Clean: clean, SkipSafetyCopy: noSafety})
			if err != nil {
				if errors.Is(err, keeper.ErrPublishFailed) {
					// Files are restored; only redeployment needs a manual push
					printRecord(stdout, rec)
					fmt.Fprintln(stdout, "warning: publish hook failed, redeploy manually")
					return err
				}
				return err
			}

			printRecord(stdout, rec)
			return nil
		},
	}

	cmd.Flags().Bool("clean", false, "Also delete local files absent from the snapshot")
	cmd.Flags().Bool("no-safety-copy", false, "Skip the pre-restore copy of the current site content")
	return cmd
}
