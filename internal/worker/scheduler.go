package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs a RefreshJob at a fixed interval. Runs never overlap; a
// tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler for job. The first run starts immediately.
func NewScheduler(job *RefreshJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and returns without blocking. Runs use ctx, so
// cancelling it aborts the run in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", s.interval)
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.job.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling refresh job: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("refresh scheduler started")
	return nil
}

// Stop stops the scheduler. A run in progress finishes on its own.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info().Msg("refresh scheduler stopped")
}

// IsRunning reports whether the scheduler has been started and not stopped.
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}
