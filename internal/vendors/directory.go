package vendors

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"dealroom/api/internal/store"
)

type source interface {
	GetVendor(ctx context.Context, id string) (store.Vendor, error)
}

// Info is the display shape shown next to an assigned role.
type Info struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Directory resolves vendor ids to display info, caching hits for ttl.
type Directory struct {
	source source
	cache  *cache.Cache
}

func NewDirectory(src source, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{source: src, cache: cache.New(ttl, 2*ttl)}
}

func (d *Directory) Resolve(ctx context.Context, id string) (Info, error) {
	if cached, found := d.cache.Get(id); found {
		return cached.(Info), nil
	}
	v, err := d.source.GetVendor(ctx, id)
	if err != nil {
		return Info{}, fmt.Errorf("resolve vendor %s: %w", id, err)
	}
	info := Info{ID: v.ID, Name: v.Name, Company: v.Company, Contact: contact(v)}
	d.cache.Set(id, info, cache.DefaultExpiration)
	return info, nil
}

// Invalidate drops a cached entry after the contact book changes.
func (d *Directory) Invalidate(id string) {
	d.cache.Delete(id)
}

func contact(v store.Vendor) string {
	switch {
	case v.Email != "" && v.Phone != "":
		return v.Email + " · " + v.Phone
	case v.Email != "":
		return v.Email
	default:
		return v.Phone
	}
}
