package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"realestate-lt/geo"
	"realestate-lt/metrics"
	"realestate-lt/models"
	"realestate-lt/storage"
	"realestate-lt/utils"
)

// ReconcilerConfig controls batching. Concurrency bounds the identity groups
// reconciled at once inside a batch; zero means one worker per group.
// GroupInterval spaces the start of identity groups; zero disables it.
type ReconcilerConfig struct {
	BatchSize     int
	BatchDelay    time.Duration
	Concurrency   int
	GroupInterval time.Duration
}

// Reconciler merges raw snapshots into the listing store.
type Reconciler struct {
	store    storage.ListingStore
	geocoder geo.Geocoder
	cleaner  *Cleaner
	metrics  *metrics.Metrics
	logger   *utils.Logger
	cfg      ReconcilerConfig
	now      func() time.Time
}

// NewReconciler wires a Reconciler. A nil geocoder disables geocoding.
func NewReconciler(store storage.ListingStore, geocoder geo.Geocoder, cleaner *Cleaner,
	m *metrics.Metrics, logger *utils.Logger, cfg ReconcilerConfig) *Reconciler {
	if geocoder == nil {
		geocoder = geo.NopGeocoder{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reconciler{
		store:    store,
		geocoder: geocoder,
		cleaner:  cleaner,
		metrics:  m,
		logger:   logger.WithField("stage", "reconcile"),
		cfg:      cfg,
		now:      time.Now,
	}
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeNew
	outcomeUpdated
)

func (o outcome) String() string {
	switch o {
	case outcomeNew:
		return "new"
	case outcomeUpdated:
		return "updated"
	default:
		return "failed"
	}
}

// Reconcile processes raws in batches. A batch only starts once the previous
// one has drained. Record failures are counted, never returned; the only error
// is a cancelled context, reported together with the partial result.
func (r *Reconciler) Reconcile(ctx context.Context, raws []*models.RawListing) (*models.ReconcileResult, error) {
	res := &models.ReconcileResult{Total: len(raws)}
	var mu sync.Mutex

	for start := 0; start < len(raws); start += r.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if start > 0 {
			if err := utils.Sleep(ctx, r.cfg.BatchDelay); err != nil {
				return res, err
			}
		}

		end := min(start+r.cfg.BatchSize, len(raws))
		groups := groupByIdentity(raws[start:end])

		workers := r.cfg.Concurrency
		if workers <= 0 {
			workers = len(groups)
		}
		pool := utils.NewWorkerPool(workers, r.cfg.GroupInterval)
		for _, group := range groups {
			group := group
			pool.Submit(func() {
				for _, raw := range group {
					o := r.reconcileOne(ctx, raw)
					r.metrics.ObserveReconciled(o.String())

					mu.Lock()
					switch o {
					case outcomeNew:
						res.Processed++
						res.New++
					case outcomeUpdated:
						res.Processed++
						res.Updated++
					default:
						res.Failed++
					}
					mu.Unlock()
				}
			})
		}
		pool.Wait()

		r.logger.Debug("batch %d-%d done (%d identities)", start+1, end, len(groups))
	}

	r.logger.WithFields(map[string]any{
		"total":   res.Total,
		"new":     res.New,
		"updated": res.Updated,
		"failed":  res.Failed,
	}).Info("reconciliation finished")
	return res, nil
}

// groupByIdentity keeps snapshot order both across groups and inside each group.
func groupByIdentity(batch []*models.RawListing) [][]*models.RawListing {
	index := make(map[string]int, len(batch))
	var groups [][]*models.RawListing
	for _, raw := range batch {
		if raw == nil {
			groups = append(groups, []*models.RawListing{nil})
			continue
		}
		key := raw.IdentityKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], raw)
	}
	return groups
}

func (r *Reconciler) reconcileOne(ctx context.Context, raw *models.RawListing) (o outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic reconciling listing: %v", p)
			o = outcomeFailed
		}
	}()

	if raw == nil {
		r.logger.Warn("skipping empty snapshot entry")
		return outcomeFailed
	}

	clean, err := r.cleaner.Normalize(raw)
	if err != nil {
		r.logger.WithField("url", raw.URL).Warn("invalid listing %q: %v", raw.Title, err)
		return outcomeFailed
	}

	existing, err := r.resolve(ctx, clean)
	if err != nil {
		r.logger.WithField("url", clean.URL).Error("identity lookup failed: %v", err)
		return outcomeFailed
	}

	if existing != nil {
		if err := r.update(ctx, existing, clean); err != nil {
			r.logger.WithField("id", existing.ID).Error("update failed: %v", err)
			return outcomeFailed
		}
		return outcomeUpdated
	}

	if err := r.create(ctx, clean); err != nil {
		r.logger.WithField("url", clean.URL).Error("create failed: %v", err)
		return outcomeFailed
	}
	return outcomeNew
}

// resolve finds the stored listing for raw: by URL first, then by the
// (title, city, area) composite. It returns nil when neither matches.
func (r *Reconciler) resolve(ctx context.Context, raw *models.RawListing) (*models.Listing, error) {
	if raw.URL != "" {
		l, err := r.store.FindByURL(ctx, raw.URL)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("find by url: %w", err)
		}
	}

	l, err := r.store.FindByIdentity(ctx, raw.Title, raw.City, raw.Area)
	if err == nil {
		return l, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("find by identity: %w", err)
}

func (r *Reconciler) update(ctx context.Context, l *models.Listing, raw *models.RawListing) error {
	now := r.now()

	if raw.Price > 0 && l.ApplyPrice(raw.Price, now) {
		r.logger.WithField("id", l.ID).Debug("price changed for %q", l.Title)
	}
	mergePresent(l, raw)
	l.UpdatedDate = now
	l.Active = true

	return r.store.Update(ctx, l)
}

// mergePresent copies the fields raw actually carries. Absent values never
// clear what is already stored.
func mergePresent(l *models.Listing, raw *models.RawListing) {
	if raw.Area > 0 {
		l.Area = raw.Area
	}
	if raw.Rooms != nil {
		l.Rooms = raw.Rooms
	}
	if raw.Floor != nil {
		l.Floor = raw.Floor
	}
	if raw.TotalFloors != nil {
		l.TotalFloors = raw.TotalFloors
	}
	if raw.BuildYear != nil {
		l.BuildYear = raw.BuildYear
	}
	if raw.District != "" {
		l.District = raw.District
	}
	if raw.Street != "" {
		l.Street = raw.Street
	}
	if raw.HeatingType != "" {
		l.HeatingType = raw.HeatingType
	}
	if raw.EnergyClass != "" {
		l.EnergyClass = raw.EnergyClass
	}
	if raw.SourceID != "" {
		l.SourceID = raw.SourceID
	}
	if raw.URL != "" && l.URL == "" {
		l.URL = raw.URL
	}
	if len(raw.Images) > 0 {
		l.Images = raw.Images
	}
	if len(raw.Details) > 0 {
		l.Details = raw.Details
	}
}

func (r *Reconciler) create(ctx context.Context, raw *models.RawListing) error {
	now := r.now()
	l := &models.Listing{
		ID:           uuid.NewString(),
		SourceID:     raw.SourceID,
		URL:          raw.URL,
		Title:        raw.Title,
		Price:        raw.Price,
		Area:         raw.Area,
		Rooms:        raw.Rooms,
		Floor:        raw.Floor,
		TotalFloors:  raw.TotalFloors,
		BuildYear:    raw.BuildYear,
		HeatingType:  raw.HeatingType,
		EnergyClass:  raw.EnergyClass,
		City:         raw.City,
		District:     raw.District,
		Street:       raw.Street,
		PropertyType: raw.PropertyType,
		ListedDate:   now,
		UpdatedDate:  now,
		PriceHistory: []models.PricePoint{},
		Images:       raw.Images,
		Details:      raw.Details,
		Active:       true,
	}

	if p, ok := r.locate(ctx, raw); ok {
		l.Latitude, l.Longitude = &p.Lat, &p.Lng
	}
	return r.store.Insert(ctx, l)
}

// locate geocodes a new listing. A city alone is too coarse to be useful, so
// at least a district or street is required.
func (r *Reconciler) locate(ctx context.Context, raw *models.RawListing) (geo.Point, bool) {
	if raw.City == "" || (raw.District == "" && raw.Street == "") {
		return geo.Point{}, false
	}

	address := Address(raw)
	res := r.geocoder.Geocode(ctx, address)
	r.metrics.ObserveGeocode(res.Status.String())

	switch res.Status {
	case geo.StatusFound:
		return res.Point, true
	case geo.StatusProviderError:
		r.logger.WithField("address", address).Warn("geocoding failed: %v", res.Err)
	default:
		r.logger.WithField("address", address).Debug("address not found")
	}
	return geo.Point{}, false
}
