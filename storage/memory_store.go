package storage

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"realestate-lt/models"
)

// MemoryStore keeps listings in process memory. It backs STORE=memory and the
// service tests. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[string]*models.Listing
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{listings: make(map[string]*models.Listing)}
}

// clone copies l so callers never share slices or maps with the store.
func clone(l *models.Listing) *models.Listing {
	cp := *l
	cp.PriceHistory = slices.Clone(l.PriceHistory)
	cp.Images = slices.Clone(l.Images)
	cp.Details = maps.Clone(l.Details)
	return &cp
}

func (ms *MemoryStore) first(match func(*models.Listing) bool) (*models.Listing, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var best *models.Listing
	for _, l := range ms.listings {
		if match(l) && (best == nil || l.UpdatedDate.After(best.UpdatedDate)) {
			best = l
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return clone(best), nil
}

func (ms *MemoryStore) FindByURL(_ context.Context, url string) (*models.Listing, error) {
	return ms.first(func(l *models.Listing) bool { return l.URL == url })
}

func (ms *MemoryStore) FindByIdentity(_ context.Context, title, city string, area float64) (*models.Listing, error) {
	return ms.first(func(l *models.Listing) bool {
		return l.Title == title && l.City == city && l.Area == area
	})
}

func (ms *MemoryStore) FindByID(_ context.Context, id string) (*models.Listing, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	l, ok := ms.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(l), nil
}

func (ms *MemoryStore) Insert(_ context.Context, l *models.Listing) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.listings[l.ID] = clone(l)
	return nil
}

func (ms *MemoryStore) Update(_ context.Context, l *models.Listing) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.listings[l.ID]; !ok {
		return ErrNotFound
	}
	ms.listings[l.ID] = clone(l)
	return nil
}

func (ms *MemoryStore) MarkInactiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var n int64
	for _, l := range ms.listings {
		if l.Active && l.UpdatedDate.Before(cutoff) {
			l.Active = false
			n++
		}
	}
	return n, nil
}

func (ms *MemoryStore) matching(f models.ListingFilter, extra func(*models.Listing) bool) []*models.Listing {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*models.Listing, 0, len(ms.listings))
	for _, l := range ms.listings {
		if f.Matches(l) && (extra == nil || extra(l)) {
			out = append(out, clone(l))
		}
	}
	return out
}

func (ms *MemoryStore) Find(_ context.Context, f models.ListingFilter) ([]*models.Listing, int, error) {
	f = f.Normalize()
	all := ms.matching(f, nil)
	sortListings(all, f.SortColumn(), f.Order == "asc")

	total := len(all)
	if f.Offset >= total {
		return []*models.Listing{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (ms *MemoryStore) FindAll(_ context.Context, f models.ListingFilter) ([]*models.Listing, error) {
	all := ms.matching(f, nil)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (ms *MemoryStore) FindWithin(_ context.Context, b models.Bounds, f models.ListingFilter) ([]*models.Listing, error) {
	return ms.matching(f, b.Contains), nil
}

func (ms *MemoryStore) Close() error { return nil }

// Len returns the number of stored listings.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.listings)
}

func sortListings(ls []*models.Listing, column string, asc bool) {
	less := func(a, b *models.Listing) bool {
		switch column {
		case "price":
			return a.Price < b.Price
		case "area":
			return a.Area < b.Area
		case "rooms":
			return derefInt(a.Rooms) < derefInt(b.Rooms)
		case "title":
			return a.Title < b.Title
		case "updated_date":
			return a.UpdatedDate.Before(b.UpdatedDate)
		default:
			return a.ListedDate.Before(b.ListedDate)
		}
	}
	sort.SliceStable(ls, func(i, j int) bool {
		if asc {
			return less(ls[i], ls[j])
		}
		return less(ls[j], ls[i])
	})
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
