package commands

import (
	"github.com/spf13/cobra"

	"dealroom/api/internal/document"
)

func convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <loi.json>",
		Short: "Draft a purchase agreement from a letter of intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(args[0])
			if err != nil {
				return err
			}
			loi, err := document.DecodeLOI(raw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), document.FromPSA(document.ConvertLOIToPSA(loi)))
		},
	}
}
