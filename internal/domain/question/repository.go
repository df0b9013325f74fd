package question

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract. Implementations live in
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines read access to questions. Question content is authored
// outside this system; the engine never writes questions.
type Repository interface {
	// GetByID returns a question with its options.
	// Returns ErrQuestionNotFound if the question does not exist.
	GetByID(ctx context.Context, id string) (*Question, error)

	// ListByLesson returns all questions of a lesson ordered by OrderIndex.
	ListByLesson(ctx context.Context, lessonID string) ([]*Question, error)

	// ListRequiredIDsByLesson returns the IDs of required questions in a
	// lesson. Used by the completion check.
	ListRequiredIDsByLesson(ctx context.Context, lessonID string) ([]string, error)
}
