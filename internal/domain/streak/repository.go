package streak

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for streaks.
type Repository interface {
	// Get returns the user's streak.
	// Returns ErrStreakNotFound if the user has no streak row yet.
	Get(ctx context.Context, userID string) (*Streak, error)

	// Touch applies one qualifying activity under a per-user row lock, so
	// two concurrent submissions on consecutive days cannot both read the
	// stale state. Creates the row on first activity.
	Touch(ctx context.Context, userID string, now time.Time) (*Streak, TouchResult, error)
}
