package vendors

import (
	"context"
	"errors"
	"testing"
	"time"

	"dealroom/api/internal/store"
)

type fakeSource struct {
	calls       int
	getVendorFn func(ctx context.Context, id string) (store.Vendor, error)
}

func (f *fakeSource) GetVendor(ctx context.Context, id string) (store.Vendor, error) {
	f.calls++
	return f.getVendorFn(ctx, id)
}

func TestResolveCachesHits(t *testing.T) {
	src := &fakeSource{getVendorFn: func(_ context.Context, id string) (store.Vendor, error) {
		return store.Vendor{ID: id, Name: "Pat Lee", Company: "Lee Inspections", Email: "pat@example.com", Phone: "555-0100"}, nil
	}}
	dir := NewDirectory(src, time.Minute)

	for range 3 {
		info, err := dir.Resolve(context.Background(), "ven_1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if info.Name != "Pat Lee" || info.Contact != "pat@example.com · 555-0100" {
			t.Fatalf("unexpected info %+v", info)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one source call, got %d", src.calls)
	}

	dir.Invalidate("ven_1")
	if _, err := dir.Resolve(context.Background(), "ven_1"); err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", src.calls)
	}
}

func TestResolveDoesNotCacheMisses(t *testing.T) {
	src := &fakeSource{getVendorFn: func(context.Context, string) (store.Vendor, error) {
		return store.Vendor{}, store.ErrNotFound
	}}
	dir := NewDirectory(src, time.Minute)

	for range 2 {
		_, err := dir.Resolve(context.Background(), "ven_missing")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if src.calls != 2 {
		t.Fatalf("misses must not be cached, got %d calls", src.calls)
	}
}

func TestContactFallsBackToPhone(t *testing.T) {
	if got := contact(store.Vendor{Phone: "555-0199"}); got != "555-0199" {
		t.Fatalf("unexpected contact %q", got)
	}
}
