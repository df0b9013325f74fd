package reward

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// AwardResult reports the outcome of an atomic ledger append.
type AwardResult struct {
	// NewTotal - the user's total XP after the append.
	NewTotal int

	// OldLevel - the cached level before the append.
	OldLevel int

	// NewLevel - the level after the append, per the level table.
	NewLevel int
}

// LeveledUp reports whether the append crossed a level threshold.
func (r AwardResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

// Repository defines storage operations for the XP ledger and profiles.
type Repository interface {
	// Award appends a ledger transaction and increments the profile total
	// in one transaction. The increment is a single atomic UPDATE; two
	// concurrent awards both land and neither overwrites the other. The
	// profile level is raised to newLevel only when newLevel is higher
	// (levels never move down).
	Award(ctx context.Context, tx *XPTransaction, table *LevelTable) (AwardResult, error)

	// GetProfile returns the cached profile.
	// Returns ErrProfileNotFound if the user has never earned XP.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// ListTransactions returns the user's ledger, newest first.
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*XPTransaction, error)

	// SumLedger returns the true ledger sum for a user. Used by
	// reconciliation.
	SumLedger(ctx context.Context, userID string) (int, error)

	// Reconcile rewrites the profile cache from the ledger sum for every
	// user whose cached total has drifted. Returns the number of profiles
	// repaired.
	Reconcile(ctx context.Context, table *LevelTable) (int, error)

	// LoadLevels returns the level table rows.
	LoadLevels(ctx context.Context) ([]Level, error)
}
