package search

import (
	"context"
	"strings"
	"time"

	"dealroom/api/internal/document"
	"dealroom/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	OfferID    string `json:"offerId"`
	PropertyID string `json:"propertyId"`
	Status     string `json:"status"`
	OfferType  string `json:"offerType"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text             string
	FilterPropertyID string
	FilterStatus     string
	Limit            int
	Offset           int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute an offer search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// OfferRecord is the data we index for an offer version.
type OfferRecord struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	BuyerID    string `json:"buyerId"`
	OfferType  string `json:"offerType"`
	Status     string `json:"status"`
	Address    string `json:"address"`
	BuyerName  string `json:"buyerName"`
	SellerName string `json:"sellerName"`
	Price      string `json:"price"`
	Message    string `json:"message"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// RecordFromOffer flattens an offer into its index record.
func RecordFromOffer(offer store.Offer) OfferRecord {
	rec := OfferRecord{
		ID:         offer.ID,
		PropertyID: offer.PropertyID,
		BuyerID:    offer.BuyerID,
		OfferType:  offer.OfferType,
		Status:     offer.Status,
		UpdatedAt:  offer.UpdatedAt.UnixMilli(),
	}
	if price := offer.Document.PurchasePrice(); price.Valid {
		rec.Price = price.Decimal.StringFixed(2)
	}

	doc := offer.Document
	switch doc.Kind {
	case document.KindLOI:
		if doc.LOI != nil {
			rec.Address = doc.LOI.Property.Address
			rec.BuyerName = firstNonBlank(doc.LOI.Parties.BuyerEntity, doc.LOI.Parties.BuyerName)
			rec.SellerName = doc.LOI.Parties.SellerName
			rec.Message = doc.LOI.Legal.AdditionalTerms
		}
	case document.KindPSA:
		if doc.PSA != nil {
			rec.Address = doc.PSA.Property.Address
			rec.BuyerName = doc.PSA.Parties.BuyerName
			rec.SellerName = doc.PSA.Parties.SellerName
			rec.Message = doc.PSA.AdditionalTerms
		}
	case document.KindLegacy:
		if doc.Legacy != nil {
			rec.Message = doc.Legacy.Message
		}
	}
	return rec
}

func resultFromRecord(rec OfferRecord) Result {
	title := firstNonBlank(rec.Address, rec.PropertyID)
	if rec.Price != "" {
		title += " · $" + rec.Price
	}
	return Result{
		OfferID:    rec.ID,
		PropertyID: rec.PropertyID,
		Status:     rec.Status,
		OfferType:  rec.OfferType,
		Title:      title,
		Snippet:    firstNonBlank(rec.Message, strings.TrimSpace(rec.BuyerName+" / "+rec.SellerName)),
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func recordTime(rec OfferRecord) time.Time {
	return time.UnixMilli(rec.UpdatedAt).UTC()
}
