package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dealroom/api/internal/document"
)

var timezone string

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dealctl",
		Short:         "Operator tools for the dealroom offer service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&timezone, "tz", "UTC", "zone calendar dates are read in")

	root.AddCommand(diffCmd(), countdownCmd(), stepsCmd(), convertCmd(), reindexCmd(), propertyStatusCmd())
	return root
}

func location() (*time.Location, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// readDocument loads a tagged offer document from path, or stdin for "-".
func readDocument(path string) (document.Document, error) {
	raw, err := readInput(path)
	if err != nil {
		return document.Document{}, err
	}
	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document.Document{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
