package scheduler

import (
	"context"
	"log/slog"
	"time"

	"feedpulse/internal/domain"
)

// Poller defines the interface for ingestion runs.
type Poller interface {
	PollAll(ctx context.Context) (*domain.IngestStats, error)
}

type Scheduler struct {
	poller     Poller
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(poller Poller, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		poller:     poller,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runPoll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runPoll(ctx)
		}
	}
}

func (s *Scheduler) runPoll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.poller.PollAll(pollCtx); err != nil {
		s.logger.Error("poll failed", "error", err)
	}
}
