package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dealroom/api/internal/config"
	"dealroom/api/internal/search"
	"dealroom/api/internal/store"
)

const reindexBatch = 500

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every offer into the Meilisearch index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.MeiliURL == "" {
				return errors.New("MEILI_URL is not set")
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

			meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
			defer meiliClient.Close()
			if !meiliClient.Healthy() {
				return errors.New("meilisearch is not reachable")
			}
			service := search.NewService(meiliClient, nil)

			total := 0
			for offset := 0; ; offset += reindexBatch {
				offers, err := dataStore.ListOffers(ctx, reindexBatch, offset)
				if err != nil {
					return err
				}
				if len(offers) == 0 {
					break
				}
				records := make([]search.OfferRecord, 0, len(offers))
				for _, offer := range offers {
					records = append(records, search.RecordFromOffer(offer))
				}
				if err := service.Reindex(records); err != nil {
					return fmt.Errorf("index batch at %d: %w", offset, err)
				}
				total += len(offers)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d offers\n", total)
			return nil
		},
	}
}
