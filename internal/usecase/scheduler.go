package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided scheduler. Each trigger runs one incremental ingest.
func (s *Scheduler) Start(ctx context.Context, opts RunOptions) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.pipeline.Run(ctx, opts)
		switch {
		case errors.Is(err, domain.ErrCacheLocked):
			s.logger.Warn("skipping scheduled run, another run holds the cache", "trigger", trigger)
		case IsCancelled(err):
			s.logger.Info("scheduled run cancelled", "run_id", report.RunID, "processed", report.Processed)
		case err != nil:
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
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
