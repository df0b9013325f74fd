// Package attempt contains the answer-attempt record. Attempts are an
// append-only history; grading never depends on earlier attempts, but the
// attempt ordinal feeds user-facing feedback and the completion check reads
// the history for correct answers.
package attempt

import (
	"encoding/json"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ATTEMPT
// ══════════════════════════════════════════════════════════════════════════════

// Attempt is one graded submission of one question by one user.
type Attempt struct {
	// ID - unique attempt identifier (UUID in string form).
	ID string

	// UserID - the user who submitted.
	UserID string

	// QuestionID - the question answered.
	QuestionID string

	// LessonID - the lesson the question belongs to, denormalized so the
	// completion check never joins through questions.
	LessonID string

	// Ordinal - 1-based attempt number for this (user, question) pair.
	Ordinal int

	// Submitted - the raw submitted payload, stored verbatim for audit.
	Submitted json.RawMessage

	// IsCorrect - the grading outcome.
	IsCorrect bool

	// Verdict - the grading verdict (correct, incorrect, partial,
	// ungradeable).
	Verdict string

	// CreatedAt - submission timestamp.
	CreatedAt time.Time
}

// Validate checks attempt invariants before persistence.
func (a *Attempt) Validate() error {
	if a.UserID == "" {
		return shared.NewDomainError("attempt", "Validate", shared.ErrEmptyValue, "user id is required")
	}
	if a.QuestionID == "" {
		return shared.NewDomainError("attempt", "Validate", shared.ErrEmptyValue, "question id is required")
	}
	if a.Ordinal < 1 {
		return shared.ErrInvalidOrdinal
	}
	return nil
}
