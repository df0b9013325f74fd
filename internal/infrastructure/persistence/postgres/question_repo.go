package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lernhub/progress-engine/internal/domain/question"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION REPOSITORY IMPLEMENTATION
// Read-only: question content is authored by the content pipeline, the
// engine only grades against it.
// ══════════════════════════════════════════════════════════════════════════════

// QuestionRepository implements question.Repository for PostgreSQL.
type QuestionRepository struct {
	conn *Connection
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(conn *Connection) *QuestionRepository {
	return &QuestionRepository{conn: conn}
}

// GetByID returns a question with its options.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*question.Question, error) {
	query := `
		SELECT id, lesson_id, question_type, prompt, correct_answer, grading,
		       points, is_required, order_index, created_at
		FROM questions
		WHERE id = $1
	`

	q, err := scanQuestion(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrQuestionNotFound
		}
		return nil, shared.WrapError("question", "GetByID", shared.ErrStorage, "query failed", err)
	}

	if err := r.loadOptions(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListByLesson returns all questions of a lesson ordered by position.
func (r *QuestionRepository) ListByLesson(ctx context.Context, lessonID string) ([]*question.Question, error) {
	query := `
		SELECT id, lesson_id, question_type, prompt, correct_answer, grading,
		       points, is_required, order_index, created_at
		FROM questions
		WHERE lesson_id = $1
		ORDER BY order_index, created_at
	`

	rows, err := r.conn.Query(ctx, query, lessonID)
	if err != nil {
		return nil, shared.WrapError("question", "ListByLesson", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var out []*question.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, shared.WrapError("question", "ListByLesson", shared.ErrStorage, "scan failed", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("question", "ListByLesson", shared.ErrStorage, "row iteration failed", err)
	}

	for _, q := range out {
		if err := r.loadOptions(ctx, q); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListRequiredIDsByLesson returns the IDs of required questions in a lesson.
func (r *QuestionRepository) ListRequiredIDsByLesson(ctx context.Context, lessonID string) ([]string, error) {
	query := `SELECT id FROM questions WHERE lesson_id = $1 AND is_required`

	rows, err := r.conn.Query(ctx, query, lessonID)
	if err != nil {
		return nil, shared.WrapError("question", "ListRequiredIDsByLesson", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("question", "ListRequiredIDsByLesson", shared.ErrStorage, "scan failed", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *QuestionRepository) loadOptions(ctx context.Context, q *question.Question) error {
	query := `
		SELECT id, option_text, is_correct, order_index
		FROM question_options
		WHERE question_id = $1
		ORDER BY order_index
	`

	rows, err := r.conn.Query(ctx, query, q.ID)
	if err != nil {
		return shared.WrapError("question", "loadOptions", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var opt question.Option
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.IsCorrect, &opt.OrderIndex); err != nil {
			return shared.WrapError("question", "loadOptions", shared.ErrStorage, "scan failed", err)
		}
		q.Options = append(q.Options, opt)
	}
	return rows.Err()
}

func scanQuestion(row pgx.Row) (*question.Question, error) {
	var (
		q          question.Question
		rawType    string
		gradingDoc []byte
		correctDoc []byte
	)
	err := row.Scan(
		&q.ID,
		&q.LessonID,
		&rawType,
		&q.Prompt,
		&correctDoc,
		&gradingDoc,
		&q.Points,
		&q.IsRequired,
		&q.OrderIndex,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	qt, err := question.ParseType(rawType)
	if err != nil {
		return nil, fmt.Errorf("stored question %s has invalid type %q: %w", q.ID, rawType, err)
	}
	q.Type = qt
	q.CorrectAnswer = json.RawMessage(correctDoc)

	if len(gradingDoc) > 0 {
		if err := json.Unmarshal(gradingDoc, &q.Grading); err != nil {
			return nil, fmt.Errorf("stored question %s has invalid grading config: %w", q.ID, err)
		}
	}
	return &q, nil
}
