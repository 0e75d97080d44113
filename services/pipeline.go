package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"realestate-lt/metrics"
	"realestate-lt/models"
	"realestate-lt/scraper"
	"realestate-lt/storage"
	"realestate-lt/utils"
)

// ErrRunInProgress is returned when a run is requested while another is still going.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Acquirer produces raw listings. *scraper.Chain satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context) (*scraper.Outcome, error)
}

// Pipeline runs acquisition, reconciliation and the staleness sweep. It does
// not know what triggered it; the scheduler and start-up hook call the same Run.
type Pipeline struct {
	acquirer   Acquirer
	snapshot   storage.SnapshotStore
	reconciler *Reconciler
	sweeper    *Sweeper
	store      storage.ListingStore
	insights   *InsightService
	metrics    *metrics.Metrics
	logger     *utils.Logger
	now        func() time.Time

	running sync.Mutex
}

// PipelineDeps groups the collaborators of a Pipeline. Insights and Metrics are optional.
type PipelineDeps struct {
	Acquirer   Acquirer
	Snapshot   storage.SnapshotStore
	Reconciler *Reconciler
	Sweeper    *Sweeper
	Store      storage.ListingStore
	Insights   *InsightService
	Metrics    *metrics.Metrics
	Logger     *utils.Logger
}

func NewPipeline(d PipelineDeps) *Pipeline {
	return &Pipeline{
		acquirer:   d.Acquirer,
		snapshot:   d.Snapshot,
		reconciler: d.Reconciler,
		sweeper:    d.Sweeper,
		store:      d.Store,
		insights:   d.Insights,
		metrics:    d.Metrics,
		logger:     d.Logger.WithField("stage", "pipeline"),
		now:        time.Now,
	}
}

// Run acquires a fresh snapshot, persists it and merges it into the store.
// Acquisition failure aborts the run before anything is written.
func (p *Pipeline) Run(ctx context.Context) (res *models.RunResult, err error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	started := p.now()
	defer func() { p.metrics.ObserveRun(err, time.Since(started)) }()

	p.logger.Info("=== scrape run starting ===")

	outcome, err := p.acquirer.Acquire(ctx)
	if err != nil {
		p.logger.Error("acquisition failed: %v", err)
		return nil, fmt.Errorf("acquire listings: %w", err)
	}
	p.logger.Info("acquired %d raw listings via %s", len(outcome.Listings), outcome.Strategy)

	if err := p.snapshot.Write(outcome.Listings); err != nil {
		p.logger.Error("writing snapshot to %s failed: %v", p.snapshot.Path(), err)
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	raws, err := p.snapshot.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	res = &models.RunResult{Strategy: outcome.Strategy, StartedAt: started}
	if err := p.reconcileAndSweep(ctx, raws, res); err != nil {
		return res, err
	}
	return res, nil
}

// ReconcileSnapshot re-runs reconciliation and the sweep from the snapshot
// already on disk, without acquiring.
func (p *Pipeline) ReconcileSnapshot(ctx context.Context) (res *models.RunResult, err error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	started := p.now()
	defer func() { p.metrics.ObserveRun(err, time.Since(started)) }()

	raws, err := p.snapshot.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	res = &models.RunResult{Strategy: "snapshot", StartedAt: started}
	if err := p.reconcileAndSweep(ctx, raws, res); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) reconcileAndSweep(ctx context.Context, raws []*models.RawListing, res *models.RunResult) error {
	rec, err := p.reconciler.Reconcile(ctx, raws)
	res.Reconcile = rec
	if err != nil {
		res.Duration = p.now().Sub(res.StartedAt)
		return fmt.Errorf("reconcile: %w", err)
	}

	n, err := p.sweeper.Sweep(ctx, p.now())
	if err != nil {
		p.logger.Error("staleness sweep failed: %v", err)
		res.SweepErr = err
	} else {
		res.Deactivated = n
	}
	res.Duration = p.now().Sub(res.StartedAt)

	p.logger.WithFields(map[string]any{
		"strategy":    res.Strategy,
		"new":         rec.New,
		"updated":     rec.Updated,
		"failed":      rec.Failed,
		"deactivated": res.Deactivated,
	}).Info("=== scrape run finished in %s ===", res.Duration.Round(time.Millisecond))

	p.report(ctx, res)
	return nil
}

func (p *Pipeline) report(ctx context.Context, res *models.RunResult) {
	if p.insights == nil {
		return
	}
	active := true
	listings, err := p.store.FindAll(ctx, models.ListingFilter{Active: &active})
	if err != nil {
		p.logger.Warn("could not load listings for the market overview: %v", err)
		p.insights.Print(res, nil)
		return
	}
	p.insights.Print(res, p.insights.Generate(listings, ""))
}
