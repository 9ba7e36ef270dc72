// Package jobs runs the periodic maintenance tasks.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 5 * time.Minute

// Sweeper downgrades expired subscriptions in bulk.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *slog.Logger
}

// NewScheduler parses spec (seconds field first) and binds the premium sweep to it.
func NewScheduler(spec string, sweeper Sweeper, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunPremiumSweep(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunPremiumSweep is one sweep; errors are logged, never propagated.
func (s *Scheduler) RunPremiumSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	started := time.Now()
	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("premium sweep failed", "resolved", n, "err", err)
		return
	}
	s.logger.Info("premium sweep done", "resolved", n, "took", time.Since(started))
}
