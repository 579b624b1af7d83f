package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/journal-monitor/backend/internal/logging"
)

// Scheduler polls every active session on a fixed interval and stops idle
// sessions.
type Scheduler struct {
	manager         *Manager
	logger          zerolog.Logger
	pollInterval    time.Duration
	cleanupInterval time.Duration
	maxAge          time.Duration
	errorBackoff    time.Duration
}

// NewScheduler creates a scheduler for m. Zero durations use the defaults:
// 1s polling, 5m cleanup, SessionMaxAge.
func NewScheduler(m *Manager, pollInterval, cleanupInterval, maxAge time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = SessionMaxAge
	}
	return &Scheduler{
		manager:         m,
		logger:          logging.Component("scheduler"),
		pollInterval:    pollInterval,
		cleanupInterval: cleanupInterval,
		maxAge:          maxAge,
		errorBackoff:    pollInterval,
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.runPollLoop(gctx)
	})
	g.Go(func() error {
		return s.runCleanupLoop(gctx)
	})
	return g.Wait()
}

func (s *Scheduler) runPollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.PollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if failed := s.PollAll(ctx); failed > 0 {
				s.sleepWithContext(ctx, s.errorBackoff)
			}
		}
	}
}

func (s *Scheduler) runCleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.manager.CleanupOldSessions(s.maxAge); n > 0 {
				s.logger.Info().Int("count", n).Msg("Stopped idle sessions")
			}
		}
	}
}

// PollAll polls each active session once and returns the number of failed polls.
func (s *Scheduler) PollAll(ctx context.Context) int {
	failed := 0
	for _, id := range s.manager.ActiveIDs() {
		if ctx.Err() != nil {
			return failed
		}
		tl, err := s.manager.Poll(ctx, id)
		if err != nil {
			failed++
			s.logger.Error().Err(err).Str("session", shortID(id)).Msg("Poll failed")
			continue
		}
		if tl.Len() > 0 {
			s.logger.Debug().Str("session", shortID(id)).Int("items", tl.Len()).Msg("Poll produced items")
		}
	}
	return failed
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
