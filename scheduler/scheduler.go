// Package scheduler triggers a job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"realestate-lt/utils"
)

// Job is the unit of scheduled work. The context is cancelled on Stop.
type Job func(ctx context.Context) error

// Scheduler runs one Job on a cron expression. A trigger that fires while the
// previous run is still going is skipped, and a panicking run is recovered.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	expr     string
	logger   *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates expr (standard five-field cron or a descriptor such as
// "@every 1h") and registers job. An empty timezone means local time.
func New(expr, timezone string, job Job, logger *utils.Logger) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}

	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}

	logger = logger.WithField("component", "scheduler")
	cl := cron.PrintfLogger(logger)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, schedule: schedule, expr: expr, logger: logger, ctx: ctx, cancel: cancel}

	c.Schedule(schedule, cron.FuncJob(func() {
		started := time.Now()
		s.logger.Info("scheduled run triggered (%s)", expr)
		if err := job(s.ctx); err != nil {
			s.logger.Error("scheduled run failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
			return
		}
		s.logger.Info("scheduled run done in %s, next at %s", time.Since(started).Round(time.Millisecond),
			s.Next(time.Now()).Format(time.DateTime))
	}))
	return s, nil
}

// Next returns the first trigger time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.cron.Location()))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("schedule %q active, next run at %s", s.expr, s.Next(time.Now()).Format(time.DateTime))
}

// Stop prevents new triggers, cancels the running job's context and waits for it to return.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
