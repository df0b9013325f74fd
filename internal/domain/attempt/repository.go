package attempt

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for answer attempts.
type Repository interface {
	// Record appends an attempt to the history. Fills a.ID and a.CreatedAt
	// when they are zero.
	Record(ctx context.Context, a *Attempt) error

	// CountForQuestion returns how many attempts the user has made on the
	// question. The next ordinal is count+1.
	CountForQuestion(ctx context.Context, userID, questionID string) (int, error)

	// CorrectQuestionIDs returns the distinct question IDs within a lesson
	// that the user has answered correctly at least once. Used by the
	// completion check.
	CorrectQuestionIDs(ctx context.Context, userID, lessonID string) ([]string, error)

	// ListForUser returns the user's attempt history for a question, newest
	// first.
	ListForUser(ctx context.Context, userID, questionID string, limit int) ([]*Attempt, error)
}
