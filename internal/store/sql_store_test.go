package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dealroom/api/internal/document"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(ctx, db, DriverSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewSQLStore(db, DriverSQLite)
}

func seedOffer(t *testing.T, s *SQLStore, id string, at time.Time) Offer {
	t.Helper()
	psa := document.DefaultPSA()
	psa.PurchasePrice = document.Money("450000")
	offer := Offer{
		ID:         id,
		PropertyID: "prop_1",
		BuyerID:    "buyer_1",
		CreatedBy:  "buyer_1",
		OfferType:  OfferTypePSA,
		Status:     OfferStatusPending,
		Document:   document.FromPSA(psa),
		Version:    1,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := s.InsertOffer(context.Background(), offer); err != nil {
		t.Fatalf("insert offer: %v", err)
	}
	return offer
}

func TestOfferRoundTrip(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 4, 1, 15, 4, 5, 123000000, time.UTC)
	seedOffer(t, s, "off_1", at)

	got, err := s.GetOffer(context.Background(), "off_1")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if got.Status != OfferStatusPending || got.Version != 1 {
		t.Fatalf("unexpected offer %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("expected millisecond timestamp %s, got %s", at, got.CreatedAt)
	}
	if got.Document.Kind != document.KindPSA || got.Document.PSA.PurchasePrice.Decimal.String() != "450000" {
		t.Fatalf("document not preserved: %+v", got.Document)
	}
	if got.CounterToOfferID != nil || got.CounteredByOfferID != nil {
		t.Fatal("expected no chain references")
	}

	if _, err := s.GetOffer(context.Background(), "off_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOffersKeepsCreationOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	seedOffer(t, s, "off_b", base.Add(time.Minute))
	seedOffer(t, s, "off_a", base)

	offers, err := s.ListOffersByProperty(context.Background(), "prop_1")
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	if len(offers) != 2 || offers[0].ID != "off_a" || offers[1].ID != "off_b" {
		t.Fatalf("unexpected order %+v", offers)
	}

	byBuyer, err := s.ListOffersByBuyer(context.Background(), "buyer_nobody")
	if err != nil {
		t.Fatalf("list by buyer: %v", err)
	}
	if byBuyer == nil || len(byBuyer) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", byBuyer)
	}
}

func TestTransitionOfferRequiresPendingAndVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	seedOffer(t, s, "off_1", now)

	if err := s.TransitionOffer(ctx, "off_1", 7, OfferStatusRejected, now); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if err := s.TransitionOffer(ctx, "off_1", 1, OfferStatusRejected, now); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := s.TransitionOffer(ctx, "off_1", 2, OfferStatusAccepted, now); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("terminal offer must not transition again, got %v", err)
	}
	if err := s.TransitionOffer(ctx, "off_missing", 1, OfferStatusRejected, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, _ := s.GetOffer(ctx, "off_1")
	if got.Status != OfferStatusRejected || got.Version != 2 {
		t.Fatalf("unexpected offer after reject %+v", got)
	}
}

func TestCounterOfferLinksChainAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	original := seedOffer(t, s, "off_1", now)

	originalID := original.ID
	counter := original
	counter.ID = "off_2"
	counter.CreatedBy = "seller_1"
	counter.CounterToOfferID = &originalID

	if err := s.CounterOffer(ctx, original.ID, original.Version, counter, now); err != nil {
		t.Fatalf("counter: %v", err)
	}

	gotOriginal, _ := s.GetOffer(ctx, "off_1")
	if gotOriginal.Status != OfferStatusCountered || gotOriginal.CounteredByOfferID == nil || *gotOriginal.CounteredByOfferID != "off_2" {
		t.Fatalf("original not countered: %+v", gotOriginal)
	}
	gotCounter, _ := s.GetOffer(ctx, "off_2")
	if gotCounter.CounterToOfferID == nil || *gotCounter.CounterToOfferID != "off_1" || gotCounter.Status != OfferStatusPending {
		t.Fatalf("counter not linked: %+v", gotCounter)
	}

	stale := original
	stale.ID = "off_3"
	stale.CounterToOfferID = &originalID
	if err := s.CounterOffer(ctx, original.ID, original.Version, stale, now); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict on second counter, got %v", err)
	}
	if _, err := s.GetOffer(ctx, "off_3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("losing counter must be rolled back, got %v", err)
	}
}

func TestAcceptPSACreatesTransactionOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.UpsertProperty(ctx, Property{ID: "prop_1", SellerID: "seller_1", Address: "1 Main St"}); err != nil {
		t.Fatalf("upsert property: %v", err)
	}
	offer := seedOffer(t, s, "off_1", now)
	due := now.Add(5 * 24 * time.Hour)
	txn := Transaction{
		ID:         "txn_1",
		OfferID:    offer.ID,
		PropertyID: offer.PropertyID,
		BuyerID:    offer.BuyerID,
		SellerID:   "seller_1",
		AcceptedAt: now,
		Steps:      []Step{{ID: "earnest", Title: "Earnest money deposit", DueAt: &due, Required: true}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	id, created, err := s.AcceptPSA(ctx, offer.ID, offer.Version, txn, now)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if id != "txn_1" || !created {
		t.Fatalf("expected created txn_1, got %s created=%v", id, created)
	}

	property, _ := s.GetProperty(ctx, "prop_1")
	if property.Status != PropertyStatusUnderContract {
		t.Fatalf("expected under_contract, got %s", property.Status)
	}

	again := txn
	again.ID = "txn_2"
	id, created, err = s.CreateTransaction(ctx, again)
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if id != "txn_1" || created {
		t.Fatalf("expected existing txn_1, got %s created=%v", id, created)
	}

	stored, err := s.GetTransactionByOffer(ctx, offer.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if len(stored.Steps) != 1 || !stored.Steps[0].DueAt.Equal(due) {
		t.Fatalf("steps not preserved: %+v", stored.Steps)
	}
	if len(stored.Parties) != 2 || stored.Parties[1] != "seller_1" {
		t.Fatalf("unexpected parties %v", stored.Parties)
	}
}

func TestAcceptPSARollsBackWhenPropertyMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	offer := seedOffer(t, s, "off_1", now)

	_, _, err := s.AcceptPSA(ctx, offer.ID, offer.Version, Transaction{ID: "txn_1", OfferID: offer.ID, PropertyID: "prop_1"}, now)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.GetOffer(ctx, offer.ID)
	if got.Status != OfferStatusPending {
		t.Fatalf("offer must stay pending after rollback, got %s", got.Status)
	}
}

func TestUpdateTransactionStepsCAS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	seedOffer(t, s, "off_1", now)
	if _, _, err := s.CreateTransaction(ctx, Transaction{ID: "txn_1", OfferID: "off_1", PropertyID: "prop_1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	steps := []Step{{ID: "closing", Title: "Closing", Completed: true, CompletedAt: &now, Required: true}}
	if err := s.UpdateTransactionSteps(ctx, "txn_1", 1, steps, now); err != nil {
		t.Fatalf("update steps: %v", err)
	}
	if err := s.UpdateTransactionSteps(ctx, "txn_1", 1, nil, now); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	vendors := []VendorAssignment{{Role: "inspector", VendorID: "ven_1"}}
	if err := s.UpdateTransactionVendors(ctx, "txn_1", 2, vendors, now); err != nil {
		t.Fatalf("update vendors: %v", err)
	}
	if err := s.UpdateTransactionVendors(ctx, "txn_missing", 1, vendors, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	txn, _ := s.GetTransaction(ctx, "txn_1")
	if txn.Version != 3 || !txn.Steps[0].Completed || txn.AssignedVendors[0].VendorID != "ven_1" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	seedOffer(t, s, "off_1", now)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, status := range []string{OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn} {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			if err := s.TransitionOffer(ctx, "off_1", 1, status, now); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(status)
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
}

func seedListedOffer(t *testing.T, s *SQLStore, id, propertyID, address string, at time.Time) {
	t.Helper()
	psa := document.DefaultPSA()
	psa.Property.Address = address
	offer := Offer{
		ID:         id,
		PropertyID: propertyID,
		BuyerID:    "buyer_1",
		CreatedBy:  "buyer_1",
		OfferType:  OfferTypePSA,
		Status:     OfferStatusPending,
		Document:   document.FromPSA(psa),
		Version:    1,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := s.InsertOffer(context.Background(), offer); err != nil {
		t.Fatalf("insert offer %s: %v", id, err)
	}
}

func TestSearchOffersMatchesDocumentText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedOffer(t, s, "off_1", time.Now())

	results, total, err := s.SearchOffers(ctx, OfferSearch{Text: "450000", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || total != 1 {
		t.Fatalf("expected one match, got %d (total %d)", len(results), total)
	}
	results, total, _ = s.SearchOffers(ctx, OfferSearch{Text: "no such words", Limit: 10})
	if len(results) != 0 || total != 0 {
		t.Fatalf("expected no match, got %d (total %d)", len(results), total)
	}
}

func TestSearchOffersFiltersBeforePaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	seedListedOffer(t, s, "off_b", "prop_2", "4 Harbor Way", base)
	seedListedOffer(t, s, "off_a", "prop_1", "9 Harbor Way", base.Add(time.Hour))
	seedListedOffer(t, s, "off_c", "prop_1", "1 Harbor Way", base.Add(2*time.Hour))

	results, total, err := s.SearchOffers(ctx, OfferSearch{Text: "Harbor", PropertyID: "prop_2", Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(results) != 1 || results[0].ID != "off_b" {
		t.Fatalf("expected the older prop_2 offer, got %+v (total %d)", results, total)
	}

	results, total, err = s.SearchOffers(ctx, OfferSearch{Text: "harbor", Status: OfferStatusPending, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("search page: %v", err)
	}
	if total != 3 || len(results) != 1 || results[0].ID != "off_a" {
		t.Fatalf("unexpected second page %+v (total %d)", results, total)
	}

	results, total, _ = s.SearchOffers(ctx, OfferSearch{Text: "harbor", Status: OfferStatusAccepted})
	if total != 0 || len(results) != 0 {
		t.Fatalf("status filter ignored: %+v (total %d)", results, total)
	}
}

func TestSearchOffersTreatsWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	seedListedOffer(t, s, "off_1", "prop_1", "12 Harbor Lane", at)
	seedListedOffer(t, s, "off_2", "prop_1", "Unit 100% Main", at.Add(time.Minute))

	for _, text := range []string{"%", "h_rbor", "12%lane"} {
		results, total, err := s.SearchOffers(ctx, OfferSearch{Text: text})
		if err != nil {
			t.Fatalf("search %q: %v", text, err)
		}
		if text == "%" {
			if total != 1 || results[0].ID != "off_2" {
				t.Fatalf("search %q should only match the literal percent, got %+v", text, results)
			}
			continue
		}
		if total != 0 {
			t.Fatalf("search %q should match nothing, got %+v", text, results)
		}
	}
}

func TestVendorUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.UpsertVendor(ctx, Vendor{ID: "ven_1", Name: "Pat Inspector", Company: "Acme Inspections"}); err != nil {
		t.Fatalf("upsert vendor: %v", err)
	}
	vendor, err := s.GetVendor(ctx, "ven_1")
	if err != nil || vendor.Company != "Acme Inspections" {
		t.Fatalf("unexpected vendor %+v err=%v", vendor, err)
	}
	if _, err := s.GetVendor(ctx, "ven_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOffersPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"off_a", "off_b", "off_c"} {
		seedOffer(t, s, id, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := s.ListOffers(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	second, err := s.ListOffers(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	if len(first) != 2 || first[0].ID != "off_a" || first[1].ID != "off_b" {
		t.Fatalf("unexpected first page %v", first)
	}
	if len(second) != 1 || second[0].ID != "off_c" {
		t.Fatalf("unexpected second page %v", second)
	}
}
