package scheduler

import (
	"context"
	"time"

	"civicfix_backend/platform/logger"
)

const defaultStaleSweepInterval = 15 * time.Minute

// StaleFailureSweeper reopens failed reports whose cooldown has elapsed.
type StaleFailureSweeper interface {
	SweepStaleFailures(ctx context.Context) (int64, error)
}

// PassEnqueuer queues a clustering pass.
type PassEnqueuer interface {
	EnqueueClusterPass(ctx context.Context, reason string) error
}

// StaleFailureSweep periodically returns cooled-down failures to the
// unsubmitted pool and asks for a clustering pass when it reopened any.
type StaleFailureSweep struct {
	sweeper  StaleFailureSweeper
	passes   PassEnqueuer
	log      *logger.Logger
	interval time.Duration
}

func NewStaleFailureSweep(sweeper StaleFailureSweeper, passes PassEnqueuer, log *logger.Logger, interval time.Duration) *StaleFailureSweep {
	if interval <= 0 {
		interval = defaultStaleSweepInterval
	}
	return &StaleFailureSweep{
		sweeper:  sweeper,
		passes:   passes,
		log:      log,
		interval: interval,
	}
}

func (s *StaleFailureSweep) Run(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *StaleFailureSweep) sweep(ctx context.Context) {
	reopened, err := s.sweeper.SweepStaleFailures(ctx)
	if err != nil {
		s.log.Warn("stale failure sweep failed", "error", err)
		return
	}
	if reopened == 0 {
		return
	}

	s.log.Info("stale failures reopened", "reopened", reopened)
	if s.passes == nil {
		return
	}
	if err := s.passes.EnqueueClusterPass(ctx, "stale-sweep"); err != nil {
		s.log.Warn("failed to enqueue cluster pass after sweep", "error", err)
	}
}
