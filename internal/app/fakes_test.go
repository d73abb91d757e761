package app

import (
	"context"
	"sync"
	"time"

	"dealroom/api/internal/archive"
	"dealroom/api/internal/document"
	"dealroom/api/internal/lock"
	"dealroom/api/internal/search"
	"dealroom/api/internal/store"
	"dealroom/api/internal/vendors"
)

var testNow = time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)

type fakeStore struct {
	insertOfferFn              func(context.Context, store.Offer) error
	getOfferFn                 func(context.Context, string) (store.Offer, error)
	listOffersByPropertyFn     func(context.Context, string) ([]store.Offer, error)
	listOffersByBuyerFn        func(context.Context, string) ([]store.Offer, error)
	transitionOfferFn          func(context.Context, string, int, string, time.Time) error
	counterOfferFn             func(context.Context, string, int, store.Offer, time.Time) error
	acceptPSAFn                func(context.Context, string, int, store.Transaction, time.Time) (string, bool, error)
	getPropertyFn              func(context.Context, string) (store.Property, error)
	createTransactionFn        func(context.Context, store.Transaction) (string, bool, error)
	getTransactionFn           func(context.Context, string) (store.Transaction, error)
	getTransactionByOfferFn    func(context.Context, string) (store.Transaction, error)
	updateTransactionStepsFn   func(context.Context, string, int, []store.Step, time.Time) error
	updateTransactionVendorsFn func(context.Context, string, int, []store.VendorAssignment, time.Time) error
	pingFn                     func(context.Context) error
}

func (f *fakeStore) InsertOffer(ctx context.Context, offer store.Offer) error {
	if f.insertOfferFn != nil {
		return f.insertOfferFn(ctx, offer)
	}
	return nil
}
func (f *fakeStore) GetOffer(ctx context.Context, id string) (store.Offer, error) {
	if f.getOfferFn != nil {
		return f.getOfferFn(ctx, id)
	}
	return store.Offer{}, store.ErrNotFound
}
func (f *fakeStore) ListOffersByProperty(ctx context.Context, propertyID string) ([]store.Offer, error) {
	if f.listOffersByPropertyFn != nil {
		return f.listOffersByPropertyFn(ctx, propertyID)
	}
	return []store.Offer{}, nil
}
func (f *fakeStore) ListOffersByBuyer(ctx context.Context, buyerID string) ([]store.Offer, error) {
	if f.listOffersByBuyerFn != nil {
		return f.listOffersByBuyerFn(ctx, buyerID)
	}
	return []store.Offer{}, nil
}
func (f *fakeStore) TransitionOffer(ctx context.Context, id string, version int, status string, at time.Time) error {
	if f.transitionOfferFn != nil {
		return f.transitionOfferFn(ctx, id, version, status, at)
	}
	return nil
}
func (f *fakeStore) CounterOffer(ctx context.Context, originalID string, version int, counter store.Offer, at time.Time) error {
	if f.counterOfferFn != nil {
		return f.counterOfferFn(ctx, originalID, version, counter, at)
	}
	return nil
}
func (f *fakeStore) AcceptPSA(ctx context.Context, offerID string, version int, txn store.Transaction, at time.Time) (string, bool, error) {
	if f.acceptPSAFn != nil {
		return f.acceptPSAFn(ctx, offerID, version, txn, at)
	}
	return txn.ID, true, nil
}
func (f *fakeStore) GetProperty(ctx context.Context, id string) (store.Property, error) {
	if f.getPropertyFn != nil {
		return f.getPropertyFn(ctx, id)
	}
	return store.Property{ID: id, SellerID: "usr_seller", Status: store.PropertyStatusActive}, nil
}
func (f *fakeStore) CreateTransaction(ctx context.Context, txn store.Transaction) (string, bool, error) {
	if f.createTransactionFn != nil {
		return f.createTransactionFn(ctx, txn)
	}
	return txn.ID, true, nil
}
func (f *fakeStore) GetTransaction(ctx context.Context, id string) (store.Transaction, error) {
	if f.getTransactionFn != nil {
		return f.getTransactionFn(ctx, id)
	}
	return store.Transaction{}, store.ErrNotFound
}
func (f *fakeStore) GetTransactionByOffer(ctx context.Context, offerID string) (store.Transaction, error) {
	if f.getTransactionByOfferFn != nil {
		return f.getTransactionByOfferFn(ctx, offerID)
	}
	return store.Transaction{}, store.ErrNotFound
}
func (f *fakeStore) UpdateTransactionSteps(ctx context.Context, id string, version int, steps []store.Step, at time.Time) error {
	if f.updateTransactionStepsFn != nil {
		return f.updateTransactionStepsFn(ctx, id, version, steps, at)
	}
	return nil
}
func (f *fakeStore) UpdateTransactionVendors(ctx context.Context, id string, version int, vendors []store.VendorAssignment, at time.Time) error {
	if f.updateTransactionVendorsFn != nil {
		return f.updateTransactionVendorsFn(ctx, id, version, vendors, at)
	}
	return nil
}
func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type recordedSnapshot struct {
	chainID string
	snap    archive.Snapshot
	author  string
	message string
}

type fakeArchive struct {
	mu         sync.Mutex
	records    []recordedSnapshot
	recordErr  error
	historyFn  func(string, string, int) ([]archive.Entry, error)
	snapshotFn func(string, string, string) (archive.Snapshot, error)
}

func (f *fakeArchive) Record(chainID string, snap archive.Snapshot, author, message string, _ time.Time) (archive.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return archive.Entry{}, f.recordErr
	}
	f.records = append(f.records, recordedSnapshot{chainID: chainID, snap: snap, author: author, message: message})
	return archive.Entry{Hash: "abc1234", Message: message, Author: author}, nil
}
func (f *fakeArchive) History(propertyID, chainID string, limit int) ([]archive.Entry, error) {
	if f.historyFn != nil {
		return f.historyFn(propertyID, chainID, limit)
	}
	return []archive.Entry{}, nil
}
func (f *fakeArchive) SnapshotAt(propertyID, hash, offerID string) (archive.Snapshot, error) {
	if f.snapshotFn != nil {
		return f.snapshotFn(propertyID, hash, offerID)
	}
	return archive.Snapshot{}, store.ErrNotFound
}

type fakeSearch struct {
	mu      sync.Mutex
	indexed []search.OfferRecord
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}
func (f *fakeSearch) IndexOffer(rec search.OfferRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, rec)
}

type fakeVendors struct {
	resolveFn func(context.Context, string) (vendors.Info, error)
}

func (f *fakeVendors) Resolve(ctx context.Context, id string) (vendors.Info, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, id)
	}
	return vendors.Info{}, store.ErrNotFound
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		store:   fs,
		archive: &fakeArchive{},
		search:  &fakeSearch{},
		locks:   lock.NewLocal(),
		vendors: &fakeVendors{},
		loc:     time.UTC,
		now:     func() time.Time { return testNow },
	}
}

func psaOffer(id string) store.Offer {
	psa := document.DefaultPSA()
	psa.PurchasePrice = document.Money("450000")
	psa.Closing.ProposedClosingDate = "2026-06-30"
	return store.Offer{
		ID:         id,
		PropertyID: "prop_1",
		BuyerID:    "usr_buyer",
		CreatedBy:  "usr_buyer",
		OfferType:  store.OfferTypePSA,
		Status:     store.OfferStatusPending,
		Document:   document.FromPSA(psa),
		Version:    1,
		CreatedAt:  testNow.Add(-time.Hour),
		UpdatedAt:  testNow.Add(-time.Hour),
	}
}

func loiOffer(id string) store.Offer {
	offer := psaOffer(id)
	loi := document.DefaultLOI()
	loi.Economics.PurchasePrice = document.Money("440000")
	offer.OfferType = store.OfferTypeLOI
	offer.Document = document.FromLOI(loi)
	return offer
}

func legacyOffer(id string) store.Offer {
	offer := psaOffer(id)
	legacy := document.DefaultLegacyOffer()
	legacy.Amount = document.Money("400000")
	legacy.EarnestMoney = document.Money("10000")
	legacy.Message = "Flexible on closing"
	offer.Document = document.FromLegacy(legacy)
	return offer
}

func offersByID(offers ...store.Offer) func(context.Context, string) (store.Offer, error) {
	index := make(map[string]store.Offer, len(offers))
	for _, offer := range offers {
		index[offer.ID] = offer
	}
	return func(_ context.Context, id string) (store.Offer, error) {
		offer, ok := index[id]
		if !ok {
			return store.Offer{}, store.ErrNotFound
		}
		return offer, nil
	}
}

func strPtr(value string) *string {
	return &value
}
