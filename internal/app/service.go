package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"dealroom/api/internal/archive"
	"dealroom/api/internal/lock"
	"dealroom/api/internal/search"
	"dealroom/api/internal/store"
	"dealroom/api/internal/vendors"
)

const (
	tracerName     = "dealroom/app"
	lockWait       = 5 * time.Second
	maxCASAttempts = 3
)

type dataStore interface {
	InsertOffer(context.Context, store.Offer) error
	GetOffer(context.Context, string) (store.Offer, error)
	ListOffersByProperty(context.Context, string) ([]store.Offer, error)
	ListOffersByBuyer(context.Context, string) ([]store.Offer, error)
	TransitionOffer(context.Context, string, int, string, time.Time) error
	CounterOffer(context.Context, string, int, store.Offer, time.Time) error
	AcceptPSA(context.Context, string, int, store.Transaction, time.Time) (string, bool, error)
	GetProperty(context.Context, string) (store.Property, error)
	CreateTransaction(context.Context, store.Transaction) (string, bool, error)
	GetTransaction(context.Context, string) (store.Transaction, error)
	GetTransactionByOffer(context.Context, string) (store.Transaction, error)
	UpdateTransactionSteps(context.Context, string, int, []store.Step, time.Time) error
	UpdateTransactionVendors(context.Context, string, int, []store.VendorAssignment, time.Time) error
	Ping(ctx context.Context) error
}

type archiver interface {
	Record(string, archive.Snapshot, string, string, time.Time) (archive.Entry, error)
	History(string, string, int) ([]archive.Entry, error)
	SnapshotAt(string, string, string) (archive.Snapshot, error)
}

type searchIndex interface {
	Search(context.Context, search.Query) search.Response
	IndexOffer(search.OfferRecord)
}

type locker interface {
	Lock(context.Context, string) (lock.Unlock, error)
}

type vendorResolver interface {
	Resolve(context.Context, string) (vendors.Info, error)
}

type Service struct {
	store   dataStore
	archive archiver
	search  searchIndex
	locks   locker
	vendors vendorResolver
	loc     *time.Location
	now     func() time.Time
}

func New(dataStore *store.SQLStore, archiveSvc *archive.Service, searchSvc *search.Service, locks locker, vendorDir *vendors.Directory, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if locks == nil {
		locks = lock.NewLocal()
	}
	svc := &Service{
		store: dataStore,
		locks: locks,
		loc:   loc,
		now:   func() time.Time { return time.Now().UTC() },
	}
	if archiveSvc != nil {
		svc.archive = archiveSvc
	}
	if searchSvc != nil {
		svc.search = searchSvc
	}
	if vendorDir != nil {
		svc.vendors = vendorDir
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Location is the zone expiration and closing dates are interpreted in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// withLock runs fn while holding the writer lock for one entity. A lock that
// cannot be acquired in time is reported as a conflict.
func (s *Service) withLock(ctx context.Context, entity, id string, fn func(context.Context) error) error {
	if s.locks == nil {
		return fn(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	unlock, err := s.locks.Lock(waitCtx, entity+":"+id)
	if err != nil {
		return storeError(err, entity)
	}
	defer unlock()
	return fn(ctx)
}
