package usecase

import (
	"context"
	"log/slog"
	"time"

	"TenderRadar/internal/ports"
)

// Scheduler wires the cron-like driver with the assignment and cycle stages.
type Scheduler struct {
	driver   ports.Scheduler
	assigner *Assigner
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring cycles.
func NewScheduler(driver ports.Scheduler, assigner *Assigner, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, assigner: assigner, pipeline: pipeline, logger: logger}
}

// Start registers the two-stage job with the provided scheduler. CPV
// assignment runs first so freshly classified subscribers can match in the
// same cycle.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if s.assigner != nil {
			if err := s.assigner.AssignAll(ctx); err != nil {
				s.error("cpv assignment stage failed", err)
			}
		}
		if err := s.pipeline.RunCycle(ctx, trigger); err != nil {
			s.error("pipeline cycle failed", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

func (s *Scheduler) error(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
