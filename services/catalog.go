package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"realestate-lt/geo"
	"realestate-lt/models"
	"realestate-lt/storage"
)

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = storage.ErrNotFound
	// ErrMissingCoordinates is returned by Nearby when no query point was given.
	ErrMissingCoordinates = errors.New("latitude and longitude are required")
)

const (
	DefaultNearbyRadiusKm = 1.0
	DefaultNearbyLimit    = 5
	DefaultTrendMonths    = 12
)

// Catalog answers read queries over stored listings for the API layer.
type Catalog struct {
	store    storage.ListingStore
	insights *InsightService
	now      func() time.Time
}

func NewCatalog(store storage.ListingStore, insights *InsightService) *Catalog {
	return &Catalog{store: store, insights: insights, now: time.Now}
}

// List returns one page of listings. Pages are numbered from 1.
func (c *Catalog) List(ctx context.Context, f models.ListingFilter) (*models.ListingPage, error) {
	f = f.Normalize()
	listings, total, err := c.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []*models.Listing{}
	}
	return &models.ListingPage{
		TotalCount: total,
		Page:       f.Offset/f.Limit + 1,
		TotalPages: (total + f.Limit - 1) / f.Limit,
		Listings:   listings,
	}, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*models.Listing, error) {
	return c.store.FindByID(ctx, id)
}

// Stats aggregates the active listings, optionally narrowed to a city and type.
func (c *Catalog) Stats(ctx context.Context, city, propertyType string) (*models.MarketStats, error) {
	f := activeFilter()
	f.City, f.PropertyType = city, propertyType
	f = f.Normalize()

	listings, err := c.store.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	return c.insights.Generate(listings, f.City), nil
}

func (c *Catalog) DistrictPrices(ctx context.Context, city string) ([]models.DistrictPrice, error) {
	f := activeFilter()
	f.City = city
	f = f.Normalize()

	listings, err := c.store.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	return c.insights.DistrictPrices(listings), nil
}

// PriceTrends returns monthly buckets over the last months months
// (DefaultTrendMonths when months <= 0).
func (c *Catalog) PriceTrends(ctx context.Context, city, propertyType string, months int) ([]models.TrendPoint, error) {
	if months <= 0 {
		months = DefaultTrendMonths
	}
	since := c.now().AddDate(0, -months, 0)

	f := activeFilter()
	f.City, f.PropertyType = city, propertyType
	f.ListedSince = &since
	f = f.Normalize()

	listings, err := c.store.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	return c.insights.PriceTrends(listings, since), nil
}

// Nearby returns active listings within radiusKm of (lat, lng), nearest first.
// Nil coordinates yield ErrMissingCoordinates.
func (c *Catalog) Nearby(ctx context.Context, lat, lng *float64, radiusKm float64, limit int) ([]models.NearbyListing, error) {
	if lat == nil || lng == nil {
		return nil, ErrMissingCoordinates
	}
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}

	center := geo.Point{Lat: *lat, Lng: *lng}
	candidates, err := c.store.FindWithin(ctx, geo.BoundingBox(center, radiusKm), activeFilter())
	if err != nil {
		return nil, err
	}

	out := make([]models.NearbyListing, 0, len(candidates))
	for _, l := range candidates {
		p, ok := geo.ListingPoint(l)
		if !ok {
			continue
		}
		d := geo.Distance(center, p)
		if d > radiusKm {
			continue
		}
		out = append(out, models.NearbyListing{Listing: l, Distance: d})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Distance = math.Round(out[i].Distance*100) / 100
	}
	return out, nil
}

func activeFilter() models.ListingFilter {
	active := true
	return models.ListingFilter{Active: &active}
}
