package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lernhub/progress-engine/internal/domain/attempt"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttemptRepository implements attempt.Repository for PostgreSQL.
type AttemptRepository struct {
	conn *Connection
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(conn *Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

// Record appends an attempt to the history.
func (r *AttemptRepository) Record(ctx context.Context, a *attempt.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO answer_attempts (id, user_id, question_id, lesson_id, ordinal, submitted, is_correct, verdict, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.QuestionID,
		a.LessonID,
		a.Ordinal,
		[]byte(a.Submitted),
		a.IsCorrect,
		a.Verdict,
		a.CreatedAt,
	)
	if err != nil {
		return shared.WrapError("attempt", "Record", shared.ErrStorage, "insert failed", err)
	}
	return nil
}

// CountForQuestion returns how many attempts the user has made on the question.
func (r *AttemptRepository) CountForQuestion(ctx context.Context, userID, questionID string) (int, error) {
	query := `SELECT COUNT(*) FROM answer_attempts WHERE user_id = $1 AND question_id = $2`

	var count int
	if err := r.conn.QueryRow(ctx, query, userID, questionID).Scan(&count); err != nil {
		return 0, shared.WrapError("attempt", "CountForQuestion", shared.ErrStorage, "count failed", err)
	}
	return count, nil
}

// CorrectQuestionIDs returns the distinct correctly-answered question IDs in
// a lesson. Served by the partial index on (user_id, lesson_id) WHERE
// is_correct.
func (r *AttemptRepository) CorrectQuestionIDs(ctx context.Context, userID, lessonID string) ([]string, error) {
	query := `
		SELECT DISTINCT question_id
		FROM answer_attempts
		WHERE user_id = $1 AND lesson_id = $2 AND is_correct
	`

	rows, err := r.conn.Query(ctx, query, userID, lessonID)
	if err != nil {
		return nil, shared.WrapError("attempt", "CorrectQuestionIDs", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("attempt", "CorrectQuestionIDs", shared.ErrStorage, "scan failed", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListForUser returns the user's attempt history for a question, newest first.
func (r *AttemptRepository) ListForUser(ctx context.Context, userID, questionID string, limit int) ([]*attempt.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, question_id, lesson_id, ordinal, submitted, is_correct, verdict, created_at
		FROM answer_attempts
		WHERE user_id = $1 AND question_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.conn.Query(ctx, query, userID, questionID, limit)
	if err != nil {
		return nil, shared.WrapError("attempt", "ListForUser", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var out []*attempt.Attempt
	for rows.Next() {
		var (
			a         attempt.Attempt
			submitted []byte
		)
		err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.LessonID, &a.Ordinal, &submitted, &a.IsCorrect, &a.Verdict, &a.CreatedAt)
		if err != nil {
			return nil, shared.WrapError("attempt", "ListForUser", shared.ErrStorage, "scan failed", err)
		}
		a.Submitted = submitted
		out = append(out, &a)
	}
	return out, rows.Err()
}
