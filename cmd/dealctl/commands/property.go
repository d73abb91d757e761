package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dealroom/api/internal/config"
	"dealroom/api/internal/store"
)

func propertyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "property-status <property-id> <active|under_contract>",
		Short: "Set a property's listing status",
		Long: "Set a property's listing status. Accepting a purchase agreement already puts the\n" +
			"property under contract; use this to reopen a listing after a deal falls through.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			propertyID, status := args[0], args[1]
			if status != store.PropertyStatusActive && status != store.PropertyStatusUnderContract {
				return fmt.Errorf("status must be %s or %s", store.PropertyStatusActive, store.PropertyStatusUnderContract)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			dataStore := store.NewSQLStore(db, cfg.DatabaseDriver)

			if err := dataStore.SetPropertyStatus(ctx, propertyID, status, time.Now()); err != nil {
				return fmt.Errorf("property %s: %w", propertyID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Property %s is now %s\n", propertyID, status)
			return nil
		},
	}
}
