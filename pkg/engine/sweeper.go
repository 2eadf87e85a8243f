package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/katlego-io/ussdflow/internal/logging"
	"github.com/katlego-io/ussdflow/pkg/domain"
)

// Sweep transitions every active session whose deadline has passed to
// expired and returns how many it moved. Safe to run concurrently with live
// traffic: each transition goes through the store's conditional save, so a
// session being advanced at the same instant is simply skipped; whichever
// writer commits first wins and the loser observes the fresh state.
//
// The timer-driven sweeper and the administrative trigger both call this
// method; there is no separate code path for manual sweeps.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := e.sessions.ListExpiring(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		session, err := e.sessions.Get(ctx, id)
		if err != nil {
			// Listed but gone; nothing to sweep.
			continue
		}
		if !session.ExpiredAt(now) {
			// Advanced or closed between listing and loading.
			continue
		}
		if err := e.close(ctx, session, domain.StatusExpired, ""); err != nil {
			if !errors.Is(err, domain.ErrConcurrentModification) {
				e.logger.Warn("sweep failed to expire session", "session_id", id, "err", err)
			}
			continue
		}
		count++
	}
	return count, nil
}

// Sweeper runs Sweep on a fixed interval until its context is canceled.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a periodic sweeper over the engine.
func NewSweeper(engine *Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run blocks, sweeping every interval, until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.engine.Sweep(ctx, s.engine.clock())
			if err != nil {
				s.logger.Warn("sweep failed", "err", err)
				continue
			}
			if count > 0 {
				s.logger.Info("swept expired sessions", "count", count)
			}
		}
	}
}
