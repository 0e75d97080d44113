package services

import (
	"context"
	"fmt"
	"time"

	"realestate-lt/metrics"
	"realestate-lt/storage"
	"realestate-lt/utils"
)

// Sweeper deactivates listings that have not been reconciled within the staleness window.
type Sweeper struct {
	store   storage.ListingStore
	window  time.Duration
	metrics *metrics.Metrics
	logger  *utils.Logger
}

func NewSweeper(store storage.ListingStore, window time.Duration, m *metrics.Metrics, logger *utils.Logger) *Sweeper {
	return &Sweeper{store: store, window: window, metrics: m, logger: logger.WithField("stage", "sweep")}
}

// Sweep marks every active listing last updated before now-window as inactive
// and returns how many were changed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.window)

	n, err := s.store.MarkInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate listings older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	s.metrics.ObserveDeactivated(n)
	s.logger.Info("deactivated %d stale listings (cutoff %s)", n, cutoff.Format(time.DateTime))
	return n, nil
}
