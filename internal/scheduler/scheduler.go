// Package scheduler drives the staleness-based background refresh.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rosenstahl/weather-risk-service/internal/store"
)

// Refresher is the slice of the store the scheduler needs.
type Refresher interface {
	IsStale() bool
	ConsumerActive(window time.Duration) bool
	Refresh(ctx context.Context, trigger string) (store.Snapshot, error)
}

// Scheduler periodically refreshes the published snapshot when it has gone
// stale, but only while consumers are actually reading it. Without recent
// reads the store stays passive and keeps serving the last snapshot.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	refresher    Refresher
	interval     time.Duration
	activeWindow time.Duration
	logger       *slog.Logger
}

// New creates a Scheduler checking staleness every interval. activeWindow is
// how recently a consumer must have polled for a refresh to fire.
func New(refresher Refresher, interval, activeWindow time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:    gocron.NewScheduler(time.UTC),
		refresher:    refresher,
		interval:     interval,
		activeWindow: activeWindow,
		logger:       logger,
	}
}

// Start schedules the staleness check and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		if !s.refresher.IsStale() || !s.refresher.ConsumerActive(s.activeWindow) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s.logger.Info("published snapshot stale, refreshing")
		if _, err := s.refresher.Refresh(ctx, "stale"); err != nil {
			s.logger.Warn("background refresh failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop cancels all future refresh checks.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
