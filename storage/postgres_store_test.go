package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-lt/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	ps := newPostgresStore(sqldb)
	t.Cleanup(func() { _ = ps.Close() })
	return ps, mock
}

var listingColumns = []string{"id", "url", "title", "price", "area", "city", "active", "price_history"}

func TestPostgresMigrate(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "listings"`).WillReturnResult(sqlmock.NewResult(0, 0))
	for _, idx := range listingIndexes {
		mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "` + idx.name + `"`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, ps.migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByURL(t *testing.T) {
	ps, mock := newMockStore(t)

	rows := sqlmock.NewRows(listingColumns).
		AddRow("id-1", "https://x/1", "2-room flat", 90000, 45.0, "Vilnius", true, []byte(`[{"price":85000,"date":"2026-01-01T00:00:00Z"}]`))
	mock.ExpectQuery(`SELECT .* FROM "listings" AS "l" WHERE \(url = 'https://x/1'\) LIMIT 1`).WillReturnRows(rows)

	l, err := ps.FindByURL(context.Background(), "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", l.ID)
	assert.Equal(t, int64(90000), l.Price)
	require.Len(t, l.PriceHistory, 1)
	assert.Equal(t, int64(85000), l.PriceHistory[0].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIdentityNotFound(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE \(title = 'Sodyba'\) AND \(city = 'Kaunas'\) AND \(area = 80\)`).
		WillReturnRows(sqlmock.NewRows(listingColumns))

	_, err := ps.FindByIdentity(context.Background(), "Sodyba", "Kaunas", 80)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertAndUpdate(t *testing.T) {
	ps, mock := newMockStore(t)
	l := &models.Listing{ID: "id-1", Title: "2-room flat", City: "Vilnius", Price: 90000, Active: true, PriceHistory: []models.PricePoint{}}

	mock.ExpectExec(`INSERT INTO "listings"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "listings" AS "l" SET .* WHERE \("l"."id" = 'id-1'\)`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "listings"`).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, ps.Insert(ctx, l))
	require.NoError(t, ps.Update(ctx, l))
	assert.ErrorIs(t, ps.Update(ctx, l), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkInactiveBefore(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "listings" AS "l" SET active = FALSE WHERE \(active = TRUE\) AND \(updated_date < '2026-10-09`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	cutoff := time.Date(2026, 10, 9, 3, 0, 0, 0, time.UTC)
	n, err := ps.MarkInactiveBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindCountsThenPages(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "listings" AS "l" WHERE \(city = 'Vilnius'\) AND \(active = TRUE\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`WHERE \(city = 'Vilnius'\) AND \(active = TRUE\) ORDER BY "price" ASC LIMIT 10 OFFSET 10`).
		WillReturnRows(sqlmock.NewRows(listingColumns).
			AddRow("a", "", "A", 100, 40.0, "Vilnius", true, nil).
			AddRow("b", "", "B", 200, 50.0, "Vilnius", true, nil))

	active := true
	ls, total, err := ps.Find(context.Background(), models.ListingFilter{
		City: "Vilnius", Active: &active, Sort: "price", Order: "asc", Limit: 10, Offset: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, ls, 2)
	assert.Equal(t, "b", ls[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindWithin(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery(`latitude BETWEEN 54.6 AND 54.8.*longitude BETWEEN 25.1 AND 25.4`).
		WillReturnRows(sqlmock.NewRows(listingColumns))

	ls, err := ps.FindWithin(context.Background(), models.Bounds{MinLat: 54.6, MaxLat: 54.8, MinLng: 25.1, MaxLng: 25.4}, models.ListingFilter{})
	require.NoError(t, err)
	assert.Empty(t, ls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
