package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/infra/metrics"
)

const sweepJob = "session_sweep"

// SessionCleaner removes expired or deactivated login sessions.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// SessionSweeper periodically deletes expired auth sessions.
type SessionSweeper struct {
	interval time.Duration
	sessions SessionCleaner
	log      *zerolog.Logger
}

func NewSessionSweeper(interval time.Duration, sessions SessionCleaner, logger *zerolog.Logger) *SessionSweeper {
	l := logger.With().Str("component", "SessionSweeper").Logger()
	return &SessionSweeper{
		interval: interval,
		sessions: sessions,
		log:      &l,
	}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting session sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass.
func (w *SessionSweeper) Sweep(ctx context.Context) int64 {
	n, err := w.sessions.CleanupExpired(ctx)
	if err != nil {
		metrics.IncJob(sweepJob, "failed")
		w.log.Error().Err(err).Msg("session sweep failed")
		return 0
	}
	metrics.IncJob(sweepJob, "ok")
	if n > 0 {
		w.log.Info().Int64("count", n).Msg("expired sessions deleted")
	}
	return n
}
