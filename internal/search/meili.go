package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxOffers = "dealroom_offers"

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the offer index.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		slog.Warn("search: meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxOffers,
		PrimaryKey: "id",
	}); err != nil {
		slog.Debug("search: create index (may already exist)", "index", idxOffers, "error", err)
	}

	index := m.client.Index(idxOffers)
	filterable := []interface{}{"propertyId", "buyerId", "status", "offerType"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		slog.Warn("search: update filterable attributes", "index", idxOffers, "error", err)
	}
	searchable := []string{"address", "buyerName", "sellerName", "message", "price", "id"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		slog.Warn("search: update searchable attributes", "index", idxOffers, "error", err)
	}
	sortable := []string{"updatedAt"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		slog.Warn("search: update sortable attributes", "index", idxOffers, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				slog.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	request := &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"address", "message"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
		Sort:                  []string{"updatedAt:desc"},
	}
	if filters := buildFilters(q); len(filters) > 0 {
		request.Filter = filters
	}

	resp, err := m.client.Index(idxOffers).Search(q.Text, request)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func buildFilters(q Query) []string {
	var filters []string
	if q.FilterPropertyID != "" {
		filters = append(filters, fmt.Sprintf("propertyId = %q", q.FilterPropertyID))
	}
	if q.FilterStatus != "" {
		filters = append(filters, fmt.Sprintf("status = %q", q.FilterStatus))
	}
	return filters
}

func hitToResult(hit meili.Hit) Result {
	rec := OfferRecord{
		ID:         decodeString(hit, "id"),
		PropertyID: decodeString(hit, "propertyId"),
		OfferType:  decodeString(hit, "offerType"),
		Status:     decodeString(hit, "status"),
		Address:    firstNonBlank(decodeFormattedString(hit, "address"), decodeString(hit, "address")),
		BuyerName:  decodeString(hit, "buyerName"),
		SellerName: decodeString(hit, "sellerName"),
		Price:      decodeString(hit, "price"),
		Message:    firstNonBlank(decodeFormattedString(hit, "message"), decodeString(hit, "message")),
	}
	return resultFromRecord(rec)
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

// IndexOffers adds or replaces offer records.
func (m *Meili) IndexOffers(records []OfferRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxOffers).AddDocuments(records, nil)
	return err
}
