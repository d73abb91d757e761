package search

import (
	"context"
	"strings"

	"dealroom/api/internal/store"
)

type offerSearcher interface {
	SearchOffers(ctx context.Context, search store.OfferSearch) ([]store.Offer, int, error)
}

// SQLFallback answers searches from the offer table when Meilisearch is not
// available. Matching is a case-insensitive substring match; filters and
// paging run in the query.
type SQLFallback struct {
	offers offerSearcher
}

func NewSQLFallback(offers offerSearcher) *SQLFallback {
	return &SQLFallback{offers: offers}
}

func (f *SQLFallback) Healthy() bool {
	return true
}

func (f *SQLFallback) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	offers, total, err := f.offers.SearchOffers(ctx, store.OfferSearch{
		Text:       q.Text,
		PropertyID: q.FilterPropertyID,
		Status:     q.FilterStatus,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	results := make([]Result, 0, len(offers))
	for _, offer := range offers {
		results = append(results, resultFromRecord(RecordFromOffer(offer)))
	}
	return results, total, nil
}
