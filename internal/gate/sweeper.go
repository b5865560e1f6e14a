package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/axionhq/axion/internal/shared"
	"github.com/axionhq/axion/internal/store"
)

const sweepInterval = time.Minute

// StartSessionSweeper runs a background goroutine that periodically
// removes expired sessions together with their pending actions. Session
// expiry is advisory for callers (ExpiresAt is part of the session
// record); the sweeper only reclaims storage.
func StartSessionSweeper(ctx context.Context, repo store.Repository) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", sweepInterval)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, repo)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, repo store.Repository) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		deleted, err := repo.DeleteExpiredSessions(ctx, time.Now())
		if err == nil {
			if deleted > 0 {
				slog.Info("Session sweeper removed expired sessions", "count", deleted)
			}
			return
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("Session sweep hit a locked database, retrying", "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}

		slog.Error("Session sweeper failed to delete expired sessions", "error", err)
		return
	}
}
