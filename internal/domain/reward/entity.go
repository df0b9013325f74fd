// Package reward contains the XP ledger, the reward profile, and the level
// progression model. The ledger is the source of truth; profile totals are a
// rebuildable cache of its sum.
package reward

import (
	"time"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP award amounts. Correct answers earn a flat amount regardless of
// question difficulty.
const (
	// XPPerCorrectAnswer - awarded once per correct submission.
	XPPerCorrectAnswer = 15

	// XPPerLessonComplete - awarded once per (user, lesson), on the
	// completion latch transition.
	XPPerLessonComplete = 50
)

// Reason classifies a ledger transaction.
type Reason string

const (
	// ReasonCorrectAnswer - XP for a correct answer submission.
	ReasonCorrectAnswer Reason = "correct_answer"
	// ReasonLessonComplete - the one-time lesson completion bonus.
	ReasonLessonComplete Reason = "lesson_complete"
	// ReasonStreak - streak milestone bonus.
	ReasonStreak Reason = "streak"
	// ReasonBadgeEarned - bonus attached to a badge unlock.
	ReasonBadgeEarned Reason = "badge_earned"
)

// IsValid checks that the reason is a known ledger reason.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonCorrectAnswer, ReasonLessonComplete, ReasonStreak, ReasonBadgeEarned:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// XPTransaction is one append-only ledger row. Transactions are never
// updated or deleted; the profile total is always reconstructible as their
// sum.
type XPTransaction struct {
	// ID - unique transaction identifier (UUID in string form).
	ID string

	// UserID - the credited user.
	UserID string

	// Amount - XP credited. Always positive.
	Amount int

	// Reason - why the XP was credited.
	Reason Reason

	// ReferenceID - the entity that triggered the credit (question id,
	// lesson id, badge id). Optional.
	ReferenceID string

	// CreatedAt - credit timestamp.
	CreatedAt time.Time
}

// Validate checks ledger invariants before the row is appended.
func (t *XPTransaction) Validate() error {
	if t.UserID == "" {
		return shared.NewDomainError("reward", "Validate", shared.ErrEmptyValue, "user id is required")
	}
	if t.Amount <= 0 {
		return shared.ErrInvalidXPAmount
	}
	if !t.Reason.IsValid() {
		return shared.ErrInvalidXPReason
	}
	return nil
}

// Profile is the per-user reward summary. TotalXP and CurrentLevel are a
// cache of the ledger; Reconcile rebuilds them when they drift.
type Profile struct {
	// UserID - profile owner.
	UserID string

	// TotalXP - cached sum of the user's ledger.
	TotalXP int

	// CurrentLevel - cached level derived from TotalXP. Monotonic: level
	// never moves down even if thresholds change.
	CurrentLevel int

	// UpdatedAt - last cache update.
	UpdatedAt time.Time
}
