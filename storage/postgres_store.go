package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"

	"realestate-lt/models"
	"realestate-lt/utils"
)

// PostgresStore persists listings to PostgreSQL through bun.
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresStore, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	ps := newPostgresStore(sqldb)

	retry := &utils.RetryConfig{MaxAttempts: 6, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return ps.db.PingContext(ctx) }); err != nil {
		_ = ps.db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if err := ps.migrate(ctx); err != nil {
		_ = ps.db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func newPostgresStore(sqldb *sql.DB) *PostgresStore {
	db := bun.NewDB(sqldb, pgdialect.New())

	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),

		// BUNDEBUG=1 logs failed queries
		// BUNDEBUG=2 logs all queries
		bundebug.FromEnv("BUNDEBUG")))

	return &PostgresStore{db: db}
}

var listingIndexes = []struct {
	name    string
	columns []string
}{
	{"idx_listings_url", []string{"url"}},
	{"idx_listings_identity", []string{"title", "city", "area"}},
	{"idx_listings_active_updated", []string{"active", "updated_date"}},
	{"idx_listings_city_type", []string{"city", "property_type"}},
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	if _, err := ps.db.NewCreateTable().
		Model((*models.Listing)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	for _, idx := range listingIndexes {
		if _, err := ps.db.NewCreateIndex().
			Model((*models.Listing)(nil)).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (ps *PostgresStore) findOne(ctx context.Context, q *bun.SelectQuery, l *models.Listing) (*models.Listing, error) {
	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres: select: %w", err)
	}
	return l, nil
}

func (ps *PostgresStore) FindByURL(ctx context.Context, url string) (*models.Listing, error) {
	l := new(models.Listing)
	return ps.findOne(ctx, ps.db.NewSelect().Model(l).Where("url = ?", url), l)
}

func (ps *PostgresStore) FindByIdentity(ctx context.Context, title, city string, area float64) (*models.Listing, error) {
	l := new(models.Listing)
	q := ps.db.NewSelect().Model(l).
		Where("title = ?", title).
		Where("city = ?", city).
		Where("area = ?", area).
		Order("updated_date DESC")
	return ps.findOne(ctx, q, l)
}

func (ps *PostgresStore) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	l := new(models.Listing)
	return ps.findOne(ctx, ps.db.NewSelect().Model(l).Where("id = ?", id), l)
}

func (ps *PostgresStore) Insert(ctx context.Context, l *models.Listing) error {
	if _, err := ps.db.NewInsert().Model(l).Exec(ctx); err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Update(ctx context.Context, l *models.Listing) error {
	res, err := ps.db.NewUpdate().Model(l).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("postgres: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) MarkInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := ps.db.NewUpdate().
		Model((*models.Listing)(nil)).
		Set("active = ?", false).
		Where("active = ?", true).
		Where("updated_date < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: mark inactive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: mark inactive: %w", err)
	}
	return n, nil
}

// applyFilter adds the WHERE clauses for every constraint set on f.
func applyFilter(q *bun.SelectQuery, f models.ListingFilter) *bun.SelectQuery {
	if f.City != "" {
		q = q.Where("city = ?", f.City)
	}
	if f.District != "" {
		q = q.Where("district = ?", f.District)
	}
	if f.PropertyType != "" {
		q = q.Where("property_type = ?", f.PropertyType)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinArea != nil {
		q = q.Where("area >= ?", *f.MinArea)
	}
	if f.MaxArea != nil {
		q = q.Where("area <= ?", *f.MaxArea)
	}
	if f.Rooms != nil {
		q = q.Where("rooms = ?", *f.Rooms)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	if f.ListedSince != nil {
		q = q.Where("listed_date >= ?", *f.ListedSince)
	}
	if f.HasLocation {
		q = q.Where("latitude IS NOT NULL").Where("longitude IS NOT NULL")
	}
	return q
}

func (ps *PostgresStore) Find(ctx context.Context, f models.ListingFilter) ([]*models.Listing, int, error) {
	f = f.Normalize()

	total, err := applyFilter(ps.db.NewSelect().Model((*models.Listing)(nil)), f).Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: count: %w", err)
	}

	var listings []*models.Listing
	err = applyFilter(ps.db.NewSelect().Model(&listings), f).
		OrderExpr("? "+strings.ToUpper(f.Order), bun.Ident(f.SortColumn())).
		Limit(f.Limit).
		Offset(f.Offset).
		Scan(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: find: %w", err)
	}
	return listings, total, nil
}

func (ps *PostgresStore) FindAll(ctx context.Context, f models.ListingFilter) ([]*models.Listing, error) {
	var listings []*models.Listing
	if err := applyFilter(ps.db.NewSelect().Model(&listings), f).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	return listings, nil
}

func (ps *PostgresStore) FindWithin(ctx context.Context, b models.Bounds, f models.ListingFilter) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := applyFilter(ps.db.NewSelect().Model(&listings), f).
		Where("latitude BETWEEN ? AND ?", b.MinLat, b.MaxLat).
		Where("longitude BETWEEN ? AND ?", b.MinLng, b.MaxLng).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: find within: %w", err)
	}
	return listings, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
