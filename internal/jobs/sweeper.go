// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ExpiredSweeper deletes sessions past their expiry.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired device sessions. Validation already
// rejects expired rows; the sweep only keeps the table small.
type Sweeper struct {
	cron     *cron.Cron
	sessions ExpiredSweeper
	schedule string
	timeout  time.Duration
	log      zerolog.Logger
}

func NewSweeper(sessions ExpiredSweeper, schedule string, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		sessions: sessions,
		schedule: schedule,
		timeout:  30 * time.Second,
		log:      log.With().Str("job", "session_sweep").Logger(),
	}
}

// Start registers the sweep and starts the scheduler. An empty schedule is a
// no-op.
func (s *Sweeper) Start() error {
	if s.schedule == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("session sweeper started")
	return nil
}

// Stop halts the scheduler and waits up to 5s for a running sweep.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("session sweep still running at shutdown")
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired sessions removed")
	}
	return n, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
	}
}
