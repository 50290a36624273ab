package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/archlens/archlens/internal/pipeline"
)

// Scheduler re-runs the ingestion pipeline on a fixed interval.
type Scheduler struct {
	pipeline *pipeline.Pipeline
	interval time.Duration
	log      *slog.Logger
}

// New creates a new scheduler.
func New(p *pipeline.Pipeline, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{pipeline: p, interval: interval, log: log}
}

// Run starts the scheduler loop. One pass runs immediately, then one per
// interval. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler: initial ingestion")
	s.runOnce(ctx)
	s.log.Info("scheduler running", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.pipeline.Run(ctx); err != nil {
		s.log.Error("ingestion run failed", "error", err)
	}
}
