package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dealroom/api/internal/steps"
)

func stepsCmd() *cobra.Command {
	var acceptedAt string
	cmd := &cobra.Command{
		Use:   "steps <offer.json>",
		Short: "Print the transaction schedule an accepted offer would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location()
			if err != nil {
				return err
			}
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			accepted := time.Now().In(loc)
			if acceptedAt != "" {
				parsed, err := time.Parse(time.RFC3339, acceptedAt)
				if err != nil {
					return fmt.Errorf("parse --accepted-at: %w", err)
				}
				accepted = parsed.In(loc)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tTITLE\tDUE")
			for _, step := range steps.Build(doc, accepted) {
				due := "-"
				if step.DueAt != nil {
					due = step.DueAt.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", step.ID, step.Title, due)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&acceptedAt, "accepted-at", "", "acceptance instant, RFC3339 (default now)")
	return cmd
}
