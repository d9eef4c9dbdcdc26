// Package scheduler runs periodic pool maintenance: allocation recompute
// and the share audit.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flub/pool-engine/internal/model"
)

// Maintainer is the part of the pool service the scheduler drives.
type Maintainer interface {
	RecalculateAllocations(ctx context.Context) error
	AuditShares(ctx context.Context) (*model.ShareAudit, error)
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron    *cron.Cron
	pool    Maintainer
	timeout time.Duration
}

// NewScheduler creates a new scheduler. Each run is bounded by timeout.
func NewScheduler(pool Maintainer, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		// Overlapping runs are skipped rather than queued.
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		pool:    pool,
		timeout: timeout,
	}
}

// Start registers the maintenance job on spec (standard cron syntax or
// descriptors such as "@every 5m") and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}

	s.cron.Start()
	slog.Info("scheduler started", "schedule", spec)
	return nil
}

// RunOnce recomputes allocations and audits shares. Failures are logged.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	if err := s.pool.RecalculateAllocations(ctx); err != nil {
		slog.Error("scheduled allocation recompute failed", "err", err)
		return
	}

	audit, err := s.pool.AuditShares(ctx)
	if err != nil {
		slog.Error("scheduled share audit failed", "err", err)
		return
	}

	slog.Info("scheduled maintenance complete",
		"holders", audit.ActiveHolders,
		"unattributed", audit.Unattributed.String(),
		"took", time.Since(start).String(),
	)
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	slog.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}
