package lesson

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for lesson progress.
type Repository interface {
	// GetProgress returns the user's progress in a lesson.
	// Returns ErrProgressNotFound if no row exists yet.
	GetProgress(ctx context.Context, userID, lessonID string) (*Progress, error)

	// MarkViewed upserts the row to at least in_progress and refreshes
	// LastViewedAt. Never touches a completed row's status.
	MarkViewed(ctx context.Context, userID, lessonID string, now time.Time) error

	// MarkCompleted fires the completion latch with a conditional write:
	// the row moves to completed only if it is not already completed.
	// Returns true when this call won the transition; false means another
	// writer completed the lesson first and the caller must not award the
	// completion bonus.
	MarkCompleted(ctx context.Context, userID, lessonID string, now time.Time) (bool, error)

	// ListForUser returns the user's progress rows, most recently viewed
	// first.
	ListForUser(ctx context.Context, userID string, limit int) ([]*Progress, error)
}
