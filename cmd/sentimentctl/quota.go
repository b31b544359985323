package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show this month's request usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if secretKey == "" {
			return fmt.Errorf("a secret key is required (--key or SENTIMENTGATE_KEY)")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		u, err := newClient().Usage(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		remaining := u.Remaining()
		c := goodColor
		if remaining == 0 {
			c = badColor
		} else if remaining*5 <= u.MaxRequests {
			c = warnColor
		}
		fmt.Fprintf(w, "%s:\t%d / %d\n", labelColor.Sprint("Requests used"), u.RequestsUsed, u.MaxRequests)
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Remaining"), c.Sprint(remaining))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}
