// Package scraper acquires raw listings through an ordered chain of strategies.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realestate-lt/metrics"
	"realestate-lt/models"
	"realestate-lt/utils"
)

// ErrAllStrategiesFailed is returned when every strategy in a Chain failed.
var ErrAllStrategiesFailed = errors.New("all acquisition strategies failed")

// Strategy is one way of producing raw listings.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context) ([]*models.RawListing, error)
}

// StrategyError ties a failure to the strategy that produced it.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// Attempt records one strategy invocation.
type Attempt struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// Outcome is the result of a successful chain run.
type Outcome struct {
	Strategy string
	Listings []*models.RawListing
	Attempts []Attempt
}

// Chain tries strategies in order and stops at the first success.
type Chain struct {
	strategies []Strategy
	logger     *utils.Logger
	metrics    *metrics.Metrics
}

// NewChain builds a chain. Nil strategies are skipped.
func NewChain(logger *utils.Logger, m *metrics.Metrics, strategies ...Strategy) *Chain {
	c := &Chain{logger: logger, metrics: m}
	for _, s := range strategies {
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	return c
}

// Strategies returns the names of the configured strategies in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Acquire runs the chain. On total failure the returned error wraps
// ErrAllStrategiesFailed and every StrategyError.
func (c *Chain) Acquire(ctx context.Context) (*Outcome, error) {
	var (
		attempts []Attempt
		errs     []error
	)

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := c.logger.WithField("strategy", s.Name())
		log.Info("[acquire] Trying strategy %s", s.Name())

		start := time.Now()
		listings, err := s.Acquire(ctx)
		att := Attempt{Strategy: s.Name(), Err: err, Duration: time.Since(start)}
		attempts = append(attempts, att)
		c.metrics.ObserveAttempt(s.Name(), err)

		if err == nil {
			log.Info("[acquire] Strategy %s produced %d raw listings in %v",
				s.Name(), len(listings), att.Duration.Round(time.Millisecond))
			return &Outcome{Strategy: s.Name(), Listings: listings, Attempts: attempts}, nil
		}

		log.Warn("[acquire] Strategy %s failed after %v: %v", s.Name(), att.Duration.Round(time.Millisecond), err)
		errs = append(errs, &StrategyError{Strategy: s.Name(), Err: err})

		if ctx.Err() != nil {
			return nil, errors.Join(append([]error{ctx.Err()}, errs...)...)
		}
	}

	return nil, errors.Join(append([]error{ErrAllStrategiesFailed}, errs...)...)
}
