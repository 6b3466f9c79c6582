package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newDisasterCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disaster",
		Short: "Destructively clear the site directory for recovery testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), stdout,
					"This will DELETE the contents of the site directory. Continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(stdout, "Disaster simulation cancelled.")
					return nil
				}
			}

			k, cleanup, err := buildKeeper(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := operationContext(cmd)
			defer cancel()

			rec, err := k.TriggerDisaster(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "disaster %s: %d entries removed\n", rec.Status, rec.FileCount)
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
	return cmd
}

// confirm prompts before a destructive action; anything but y/yes declines
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}
