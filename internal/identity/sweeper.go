package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/socratic-tutor/internal/shared"
	"github.com/ashureev/socratic-tutor/internal/store"
)

const (
	deleteRetries    = 3
	deleteRetryDelay = 100 * time.Millisecond
)

// SweepResult describes one sweeper pass.
type SweepResult struct {
	Now time.Time
	// ExpiredUsers holds the owners of sign-in sessions removed in this pass.
	ExpiredUsers []string
}

// SweepFunc runs after each pass, e.g. to evict idle transcripts.
type SweepFunc func(ctx context.Context, res SweepResult)

// StartSweeper runs a background goroutine that periodically removes expired
// sign-in sessions and then calls hooks. It stops when ctx is cancelled.
func StartSweeper(ctx context.Context, repo store.Repository, interval time.Duration, hooks ...SweepFunc) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, time.Now(), hooks...)
			case <-ctx.Done():
				slog.Info("Sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep performs a single pass.
func Sweep(ctx context.Context, repo store.Repository, now time.Time, hooks ...SweepFunc) SweepResult {
	res := SweepResult{Now: now}

	expired, err := repo.ExpiredAuthSessions(ctx, now)
	if err != nil {
		slog.Error("Sweeper failed to list expired sign-in sessions", "error", err)
	}

	seen := make(map[string]bool, len(expired))
	for _, session := range expired {
		err := shared.RetryOnConflict(ctx, deleteRetries, deleteRetryDelay, func() error {
			return repo.DeleteAuthSession(ctx, session.SessionID)
		})
		if err != nil {
			if ctx.Err() != nil {
				slog.Debug("Sweeper cancelled, cleanup may be incomplete", "error", err)
				return res
			}
			slog.Warn("Sweeper failed to delete sign-in session", "user_id", session.UserID, "error", err)
			continue
		}
		if !seen[session.UserID] {
			seen[session.UserID] = true
			res.ExpiredUsers = append(res.ExpiredUsers, session.UserID)
		}
	}

	if len(expired) > 0 {
		slog.Info("Sweeper removed expired sign-in sessions", "count", len(expired))
	}

	for _, hook := range hooks {
		hook(ctx, res)
	}
	return res
}
