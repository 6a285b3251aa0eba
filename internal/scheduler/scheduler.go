// Package scheduler runs the recurring merge in-process for warehouses that
// have no task scheduler of their own.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/co2-weather-etl/internal/observability"
)

// Merger performs one upsert of staging into harmonized.
type Merger interface {
	Merge(ctx context.Context) (string, error)
}

// Pinger is implemented by mergers that can report connection health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Scheduler triggers Merger on a cron schedule. At most one merge runs at a
// time; a trigger that fires while a merge is active is skipped, not queued.
type Scheduler struct {
	scheduler *gocron.Scheduler
	merger    Merger
	cron      string
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger

	running sync.Mutex
	started atomic.Bool
	baseCtx context.Context
}

// New creates a scheduler for a standard five-field UTC cron expression.
func New(merger Merger, cron string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		merger:    merger,
		cron:      cron,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
		baseCtx:   context.Background(),
	}
}

// Start registers the merge job and starts the scheduler. Scheduled merges
// run under ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = ctx
	if _, err := s.scheduler.Cron(s.cron).Do(func() { s.Trigger(s.baseCtx) }); err != nil {
		return fmt.Errorf("schedule merge %q: %w", s.cron, err)
	}
	s.scheduler.StartAsync()
	s.started.Store(true)
	s.logger.Info("merge schedule started", "cron", s.cron)
	return nil
}

// Stop stops the scheduler. A merge already running is allowed to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.started.Store(false)
	s.running.Lock()
	defer s.running.Unlock()
}

// Trigger runs a merge now unless one is already active. It reports whether
// the merge ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.metrics.MergeSkipped.Inc()
		s.logger.Warn("merge already running, trigger skipped")
		return false
	}
	defer s.running.Unlock()

	s.metrics.MergeRunning.Set(1)
	defer s.metrics.MergeRunning.Set(0)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	status, err := s.merger.Merge(ctx)
	if err != nil {
		s.metrics.MergeRuns.WithLabelValues("error").Inc()
		s.logger.Error("merge failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return true
	}
	s.metrics.MergeRuns.WithLabelValues("success").Inc()
	s.logger.Info("merge complete", "status", status, "duration_ms", time.Since(start).Milliseconds())
	return true
}

// CheckReadiness reports ready once the schedule is running and, when the
// merger supports it, its connection answers.
func (s *Scheduler) CheckReadiness(ctx context.Context) error {
	if !s.started.Load() {
		return errors.New("merge schedule not started")
	}
	if p, ok := s.merger.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("warehouse unreachable: %w", err)
		}
	}
	return nil
}
