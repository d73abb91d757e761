package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"dealroom/api/internal/archive"
	"dealroom/api/internal/lock"
	"dealroom/api/internal/search"
	"dealroom/api/internal/steps"
	"dealroom/api/internal/store"
	"dealroom/api/internal/vendors"
)

func newSQLiteService(t *testing.T) (*Service, *store.SQLStore) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(ctx, db, store.DriverSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	dataStore := store.NewSQLStore(db, store.DriverSQLite)
	if err := dataStore.UpsertProperty(ctx, store.Property{
		ID:       "prop_1",
		SellerID: "usr_seller",
		Address:  "12 Harbor Lane",
		Price:    "475000",
	}); err != nil {
		t.Fatalf("seed property: %v", err)
	}

	svc := New(
		dataStore,
		archive.New(t.TempDir()),
		search.NewService(nil, search.NewSQLFallback(dataStore)),
		lock.NewLocal(),
		vendors.NewDirectory(dataStore, time.Minute),
		time.UTC,
	)
	return svc, dataStore
}

func TestNegotiationToClosingFlow(t *testing.T) {
	ctx := context.Background()
	svc, dataStore := newSQLiteService(t)

	original, err := svc.CreateOffer(ctx, CreateOfferInput{
		PropertyID: "prop_1",
		BuyerID:    "usr_buyer",
		OfferType:  "psa",
		Document:   json.RawMessage(`{"kind":"psa","psa":{"purchasePrice":"450000","property":{"address":"12 Harbor Lane"}}}`),
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	counter, err := svc.CounterOffer(ctx, original.ID, CounterOfferInput{
		PSA: json.RawMessage(`{"purchasePrice":"465000","property":{"address":"12 Harbor Lane"}}`),
	}, "usr_seller")
	if err != nil {
		t.Fatalf("counter offer: %v", err)
	}

	stored, err := svc.GetOfferByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("reload original: %v", err)
	}
	if stored.Status != store.OfferStatusCountered || stored.CounteredByOfferID == nil || *stored.CounteredByOfferID != counter.ID {
		t.Fatalf("original not linked to its counter: %+v", stored)
	}

	chain, err := svc.GetOfferChain(ctx, counter.ID)
	if err != nil {
		t.Fatalf("offer chain: %v", err)
	}
	if len(chain) != 2 || chain[0].ID != original.ID || chain[1].ID != counter.ID {
		t.Fatalf("unexpected chain %+v", chain)
	}

	compared, err := svc.CompareWithPrevious(ctx, counter.ID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(compared.Rows) != 1 || compared.Rows[0].Original != "$450,000" || compared.Rows[0].Current != "$465,000" {
		t.Fatalf("unexpected comparison %+v", compared.Rows)
	}

	accepted, err := svc.AcceptOffer(ctx, counter.ID, AcceptOptions{})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.TransactionID == nil || !accepted.TransactionCreated {
		t.Fatalf("expected a new transaction, got %+v", accepted)
	}
	if _, err := svc.AcceptOffer(ctx, counter.ID, AcceptOptions{}); err == nil {
		t.Fatal("accepting twice must fail")
	}

	property, err := dataStore.GetProperty(ctx, "prop_1")
	if err != nil {
		t.Fatalf("reload property: %v", err)
	}
	if property.Status != store.PropertyStatusUnderContract {
		t.Fatalf("expected property under contract, got %q", property.Status)
	}

	id, created, err := svc.EnsureTransaction(ctx, counter.ID)
	if err != nil || created || id != *accepted.TransactionID {
		t.Fatalf("ensure transaction = %q %v %v", id, created, err)
	}

	if _, err := svc.UpdateStepComplete(ctx, id, steps.StepEarnest, true); err != nil {
		t.Fatalf("complete earnest step: %v", err)
	}
	if err := dataStore.UpsertVendor(ctx, store.Vendor{ID: "ven_title", Name: "Coastal Title", Email: "close@coastal.example"}); err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	if _, err := svc.SetAssignedVendor(ctx, id, "title", strPtr("ven_title")); err != nil {
		t.Fatalf("assign vendor: %v", err)
	}

	view, err := svc.TransactionViewByOffer(ctx, counter.ID)
	if err != nil {
		t.Fatalf("transaction view: %v", err)
	}
	if view.Version != 3 {
		t.Fatalf("expected two writes after creation, got version %d", view.Version)
	}
	if view.Steps[0].ID != steps.StepEarnest || !view.Steps[0].Completed || view.Steps[0].DueStatus != nil {
		t.Fatalf("unexpected earnest step %+v", view.Steps[0])
	}
	if last := view.Steps[len(view.Steps)-1]; last.ID != steps.StepClosing {
		t.Fatalf("closing must be the final step, got %s", last.ID)
	}
	if len(view.AssignedVendors) != 1 || view.AssignedVendors[0].Vendor.Name != "Coastal Title" {
		t.Fatalf("unexpected vendors %+v", view.AssignedVendors)
	}

	history, err := svc.History(ctx, counter.ID, 50)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected create, counter (two offers) and accept commits, got %d", len(history))
	}
	snap, err := svc.SnapshotAt(ctx, original.ID, history[len(history)-1].Hash)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Status != store.OfferStatusPending {
		t.Fatalf("first snapshot should show the pending offer, got %q", snap.Status)
	}

	results := svc.Search(ctx, search.Query{Text: "harbor", Limit: 10})
	if results.Total != 2 {
		t.Fatalf("expected both offers from the sql fallback, got %+v", results)
	}
}

func TestHTTPOverSQLite(t *testing.T) {
	svc, _ := newSQLiteService(t)
	server := NewHTTPServer(svc, "*", nil)

	rr := serve(t, server, http.MethodPost, "/api/offers", `{"propertyId":"prop_1","buyerId":"usr_buyer","offerType":"loi"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create offer: %d %s", rr.Code, rr.Body.String())
	}
	created := decodeMap(t, rr)
	offerID := created["id"].(string)

	rr = serve(t, server, http.MethodGet, "/api/properties/prop_1/offers", "", nil)
	offers, _ := decodeMap(t, rr)["offers"].([]any)
	if rr.Code != http.StatusOK || len(offers) != 1 {
		t.Fatalf("property offers: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodPost, "/api/offers/"+offerID+"/withdraw", "", nil)
	if rr.Code != http.StatusOK || decodeMap(t, rr)["status"] != store.OfferStatusWithdrawn {
		t.Fatalf("withdraw: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodPost, "/api/offers/"+offerID+"/accept", "", nil)
	if rr.Code != http.StatusConflict || decodeMap(t, rr)["code"] != "INVALID_STATE" {
		t.Fatalf("accept after withdraw: %d %s", rr.Code, rr.Body.String())
	}
}

func TestOffersListInCreationOrderWithinOneMillisecond(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)
	frozen := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }

	created := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		offer, err := svc.CreateOffer(ctx, CreateOfferInput{PropertyID: "prop_1", BuyerID: "usr_buyer", OfferType: "loi"})
		if err != nil {
			t.Fatalf("create offer %d: %v", i, err)
		}
		created = append(created, offer.ID)
	}

	byBuyer, err := svc.GetOffersByBuyer(ctx, "usr_buyer")
	if err != nil {
		t.Fatalf("offers by buyer: %v", err)
	}
	byProperty, err := svc.GetOffersByProperty(ctx, "prop_1")
	if err != nil {
		t.Fatalf("offers by property: %v", err)
	}
	for name, listed := range map[string][]store.Offer{"buyer": byBuyer, "property": byProperty} {
		if len(listed) != len(created) {
			t.Fatalf("%s: expected %d offers, got %d", name, len(created), len(listed))
		}
		for i, offer := range listed {
			if offer.ID != created[i] {
				t.Fatalf("%s position %d: created %s, listed %s", name, i, created[i], offer.ID)
			}
		}
	}
}
