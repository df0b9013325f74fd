package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lernhub/progress-engine/internal/domain/lesson"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS REPOSITORY IMPLEMENTATION
// MarkCompleted is the completion latch: a conditional upsert whose WHERE
// clause rejects already-completed rows. Rows-affected tells the caller
// whether they won the transition, without any explicit locking.
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

// GetProgress returns the user's progress in a lesson.
func (r *LessonRepository) GetProgress(ctx context.Context, userID, lessonID string) (*lesson.Progress, error) {
	query := `
		SELECT user_id, lesson_id, status, last_viewed_at, completed_at, updated_at
		FROM lesson_progress
		WHERE user_id = $1 AND lesson_id = $2
	`

	var (
		p      lesson.Progress
		status string
	)
	err := r.conn.QueryRow(ctx, query, userID, lessonID).Scan(
		&p.UserID, &p.LessonID, &status, &p.LastViewedAt, &p.CompletedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, shared.WrapError("lesson", "GetProgress", shared.ErrStorage, "query failed", err)
	}
	p.Status = lesson.Status(status)
	return &p, nil
}

// MarkViewed upserts the row to at least in_progress. A completed row only
// refreshes its timestamps; status never moves backward.
func (r *LessonRepository) MarkViewed(ctx context.Context, userID, lessonID string, now time.Time) error {
	query := `
		INSERT INTO lesson_progress (user_id, lesson_id, status, last_viewed_at, updated_at)
		VALUES ($1, $2, 'in_progress', $3, $3)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET last_viewed_at = EXCLUDED.last_viewed_at,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := r.conn.Exec(ctx, query, userID, lessonID, now); err != nil {
		return shared.WrapError("lesson", "MarkViewed", shared.ErrStorage, "upsert failed", err)
	}
	return nil
}

// MarkCompleted fires the completion latch. Returns true only when this
// call performed the transition.
func (r *LessonRepository) MarkCompleted(ctx context.Context, userID, lessonID string, now time.Time) (bool, error) {
	query := `
		INSERT INTO lesson_progress (user_id, lesson_id, status, last_viewed_at, completed_at, updated_at)
		VALUES ($1, $2, 'completed', $3, $3, $3)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET status = 'completed',
		    completed_at = EXCLUDED.completed_at,
		    updated_at = EXCLUDED.updated_at
		WHERE lesson_progress.status <> 'completed'
	`

	tag, err := r.conn.Exec(ctx, query, userID, lessonID, now)
	if err != nil {
		return false, shared.WrapError("lesson", "MarkCompleted", shared.ErrStorage, "latch write failed", err)
	}
	// Zero rows affected means the WHERE clause rejected the update: the
	// lesson was already completed and this caller lost the race.
	return tag.RowsAffected() == 1, nil
}

// ListForUser returns the user's progress rows, most recently viewed first.
func (r *LessonRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*lesson.Progress, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT user_id, lesson_id, status, last_viewed_at, completed_at, updated_at
		FROM lesson_progress
		WHERE user_id = $1
		ORDER BY last_viewed_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, shared.WrapError("lesson", "ListForUser", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var out []*lesson.Progress
	for rows.Next() {
		var (
			p      lesson.Progress
			status string
		)
		if err := rows.Scan(&p.UserID, &p.LessonID, &status, &p.LastViewedAt, &p.CompletedAt, &p.UpdatedAt); err != nil {
			return nil, shared.WrapError("lesson", "ListForUser", shared.ErrStorage, "scan failed", err)
		}
		p.Status = lesson.Status(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}
