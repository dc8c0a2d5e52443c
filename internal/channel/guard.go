package channel

import (
	"context"
	"log/slog"
	"time"

	"wacast/internal/observability"
)

const (
	DefaultGuardWait = 30 * time.Second
	DefaultGuardPoll = 1 * time.Second
)

// Guard verifies and, when needed, restores session readiness. Long-running
// broadcasts outlive the session, so the runner invokes the guard before
// every send attempt and again between batches.
type Guard struct {
	MaxWait time.Duration
	Poll    time.Duration
}

func NewGuard(maxWait, poll time.Duration) *Guard {
	if maxWait <= 0 {
		maxWait = DefaultGuardWait
	}
	if poll <= 0 {
		poll = DefaultGuardPoll
	}
	return &Guard{MaxWait: maxWait, Poll: poll}
}

// EnsureReady reports whether the session is usable. If it is not, the guard
// tears the session down, requests a fresh connection, and polls readiness
// until MaxWait elapses. A false return is fatal for the current attempt,
// not for the whole run.
func (g *Guard) EnsureReady(ctx context.Context, s Session) bool {
	if s.IsReady(ctx) {
		observability.GuardChecks.WithLabelValues("ready").Inc()
		return true
	}

	slog.Warn("session not ready, reinitializing")
	if err := s.Destroy(ctx); err != nil {
		slog.Warn("session destroy failed", "err", err)
	}
	if err := s.Initialize(ctx); err != nil {
		slog.Error("session initialize failed", "err", err)
		observability.GuardChecks.WithLabelValues("timeout").Inc()
		return false
	}

	deadline := time.Now().Add(g.MaxWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			observability.GuardChecks.WithLabelValues("canceled").Inc()
			return false
		case <-time.After(g.Poll):
		}
		if s.IsReady(ctx) {
			slog.Info("session restored")
			observability.GuardChecks.WithLabelValues("restored").Inc()
			return true
		}
	}

	slog.Error("session not ready within wait ceiling", "max_wait", g.MaxWait)
	observability.GuardChecks.WithLabelValues("timeout").Inc()
	return false
}
