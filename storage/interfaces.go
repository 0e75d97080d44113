package storage

import (
	"context"
	"errors"
	"time"

	"realestate-lt/models"
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = errors.New("listing not found")

// ListingStore is the interface any listing storage backend must satisfy.
type ListingStore interface {
	// FindByURL returns the listing with exactly this URL.
	FindByURL(ctx context.Context, url string) (*models.Listing, error)
	// FindByIdentity returns the listing matching the (title, city, area) composite key.
	FindByIdentity(ctx context.Context, title, city string, area float64) (*models.Listing, error)
	FindByID(ctx context.Context, id string) (*models.Listing, error)

	Insert(ctx context.Context, l *models.Listing) error
	Update(ctx context.Context, l *models.Listing) error

	// MarkInactiveBefore deactivates, in one bulk operation, every active listing
	// last updated before cutoff and returns how many were changed.
	MarkInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Find returns one sorted page of listings matching f plus the total match count.
	Find(ctx context.Context, f models.ListingFilter) ([]*models.Listing, int, error)
	// FindAll returns every listing matching f, ignoring paging.
	FindAll(ctx context.Context, f models.ListingFilter) ([]*models.Listing, error)
	// FindWithin returns listings matching f whose coordinates fall inside b.
	FindWithin(ctx context.Context, b models.Bounds, f models.ListingFilter) ([]*models.Listing, error)

	Close() error
}

// SnapshotStore persists the raw acquisition output between stages.
type SnapshotStore interface {
	Write(listings []*models.RawListing) error
	Read() ([]*models.RawListing, error)
	Path() string
}
