package badge

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for the badge catalog and unlocks.
type Repository interface {
	// GetByCode returns a catalog entry.
	// Returns ErrBadgeNotFound if the code is unknown.
	GetByCode(ctx context.Context, code string) (*Badge, error)

	// ListByCategory returns catalog entries of one category.
	ListByCategory(ctx context.Context, category Category) ([]*Badge, error)

	// ListEarned returns the user's unlocked badges with unlock timestamps.
	ListEarned(ctx context.Context, userID string) ([]*Badge, []*UserBadge, error)

	// Grant records an unlock. Idempotent: a repeat grant returns
	// ErrBadgeAlreadyEarned and writes nothing.
	Grant(ctx context.Context, userID, badgeID string, earnedAt time.Time) error

	// HasEarned reports whether the user already holds the badge.
	HasEarned(ctx context.Context, userID, badgeID string) (bool, error)
}
