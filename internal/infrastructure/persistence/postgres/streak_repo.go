package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// Touch serializes per user with SELECT ... FOR UPDATE: two submissions
// racing across a midnight boundary line up behind the row lock, so the
// second one sees the first one's date and the day is never counted twice.
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

// Get returns the user's streak.
func (r *StreakRepository) Get(ctx context.Context, userID string) (*streak.Streak, error) {
	query := `
		SELECT user_id, current_streak, longest_streak, last_activity_date, updated_at
		FROM user_streaks
		WHERE user_id = $1
	`
	s, err := scanStreak(r.conn.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrStreakNotFound
		}
		return nil, shared.WrapError("streak", "Get", shared.ErrStorage, "query failed", err)
	}
	return s, nil
}

// Touch applies one qualifying activity under a per-user row lock.
func (r *StreakRepository) Touch(ctx context.Context, userID string, now time.Time) (*streak.Streak, streak.TouchResult, error) {
	var (
		s      *streak.Streak
		result streak.TouchResult
	)

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		// Ensure the row exists so FOR UPDATE has something to lock.
		ensure := `
			INSERT INTO user_streaks (user_id, current_streak, longest_streak, updated_at)
			VALUES ($1, 0, 0, NOW())
			ON CONFLICT (user_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, ensure, userID); err != nil {
			return shared.WrapError("streak", "Touch", shared.ErrStorage, "row ensure failed", err)
		}

		lock := `
			SELECT user_id, current_streak, longest_streak, last_activity_date, updated_at
			FROM user_streaks
			WHERE user_id = $1
			FOR UPDATE
		`
		locked, err := scanStreak(tx.QueryRow(ctx, lock, userID))
		if err != nil {
			return shared.WrapError("streak", "Touch", shared.ErrStorage, "row lock failed", err)
		}

		result = locked.Touch(now)
		if result.Outcome == streak.OutcomeUnchanged {
			s = locked
			return nil
		}

		update := `
			UPDATE user_streaks
			SET current_streak = $2, longest_streak = $3, last_activity_date = $4, updated_at = $5
			WHERE user_id = $1
		`
		_, err = tx.Exec(ctx, update, userID, locked.Current, locked.Longest, locked.LastActivityDate, locked.UpdatedAt)
		if err != nil {
			return shared.WrapError("streak", "Touch", shared.ErrStorage, "update failed", err)
		}
		s = locked
		return nil
	})
	if err != nil {
		return nil, streak.TouchResult{}, err
	}
	return s, result, nil
}

func scanStreak(row pgx.Row) (*streak.Streak, error) {
	var (
		s        streak.Streak
		lastDate *time.Time
	)
	if err := row.Scan(&s.UserID, &s.Current, &s.Longest, &lastDate, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if lastDate != nil {
		s.LastActivityDate = lastDate.UTC()
	}
	return &s, nil
}
