package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dealroom/api/internal/diff"
)

func diffCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "diff <original.json> <current.json>",
		Short: "Show the terms that changed between two offer documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := readDocument(args[0])
			if err != nil {
				return err
			}
			current, err := readDocument(args[1])
			if err != nil {
				return err
			}
			rows := diff.Diff(original, current)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tORIGINAL\tCURRENT")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Label, row.Original, row.Current)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}
