package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dealroom/api/internal/expiration"
)

func countdownCmd() *cobra.Command {
	var (
		date string
		at   string
		now  string
	)
	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Show the time left before an offer expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location()
			if err != nil {
				return err
			}
			expiry, ok := expiration.Combine(date, at, loc)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), expiration.NoExpirationText)
				return nil
			}
			current := time.Now()
			if now != "" {
				current, err = time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("parse --now: %w", err)
				}
			}
			countdown := expiration.FormatCountdown(expiry, current)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (expires %s)\n", countdown.Text, expiry.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "expiration date, YYYY-MM-DD")
	cmd.Flags().StringVar(&at, "time", "", "expiration time, e.g. 5:00 pm")
	cmd.Flags().StringVar(&now, "now", "", "evaluate at this RFC3339 instant instead of the clock")
	return cmd
}
