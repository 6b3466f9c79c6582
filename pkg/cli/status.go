package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newStatusCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show lock state and the latest backup/restore outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, cleanup, err := buildKeeper(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := k.GetStatus()
			if err != nil {
				return err
			}

			return printJSON(stdout, status)
		},
	}
}
