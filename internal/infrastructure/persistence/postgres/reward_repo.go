package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD REPOSITORY IMPLEMENTATION
// The ledger append and the profile increment commit together. The profile
// bump is a single atomic UPDATE expression, never read-modify-write in Go:
// concurrent awards to the same user both land and the total is exact.
// ══════════════════════════════════════════════════════════════════════════════

// RewardRepository implements reward.Repository for PostgreSQL.
type RewardRepository struct {
	conn *Connection
}

// NewRewardRepository creates a new RewardRepository.
func NewRewardRepository(conn *Connection) *RewardRepository {
	return &RewardRepository{conn: conn}
}

// Award appends a ledger transaction and increments the profile total in
// one transaction.
func (r *RewardRepository) Award(ctx context.Context, tx *reward.XPTransaction, table *reward.LevelTable) (reward.AwardResult, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	var result reward.AwardResult
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(dbtx pgx.Tx) error {
		insertLedger := `
			INSERT INTO xp_transactions (id, user_id, amount, reason, reference_id, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		`
		if _, err := dbtx.Exec(ctx, insertLedger, tx.ID, tx.UserID, tx.Amount, string(tx.Reason), tx.ReferenceID, tx.CreatedAt); err != nil {
			return shared.WrapError("reward", "Award", shared.ErrStorage, "ledger insert failed", err)
		}

		// The upsert leaves current_level untouched, so RETURNING hands
		// back the pre-award level together with the post-award total.
		upsertProfile := `
			INSERT INTO user_reward_profiles (user_id, total_xp, current_level, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (user_id) DO UPDATE
			SET total_xp = user_reward_profiles.total_xp + EXCLUDED.total_xp,
			    updated_at = NOW()
			RETURNING total_xp, current_level
		`
		var newTotal, oldLevel int
		if err := dbtx.QueryRow(ctx, upsertProfile, tx.UserID, tx.Amount).Scan(&newTotal, &oldLevel); err != nil {
			return shared.WrapError("reward", "Award", shared.ErrStorage, "profile upsert failed", err)
		}

		newLevel := table.LevelFor(newTotal).Number
		if newLevel > oldLevel {
			// Conditional so a concurrent award that already raised the
			// level further is never lowered.
			raiseLevel := `
				UPDATE user_reward_profiles
				SET current_level = $2
				WHERE user_id = $1 AND current_level < $2
			`
			if _, err := dbtx.Exec(ctx, raiseLevel, tx.UserID, newLevel); err != nil {
				return shared.WrapError("reward", "Award", shared.ErrStorage, "level update failed", err)
			}
		} else {
			newLevel = oldLevel
		}

		result = reward.AwardResult{NewTotal: newTotal, OldLevel: oldLevel, NewLevel: newLevel}
		return nil
	})
	if err != nil {
		return reward.AwardResult{}, err
	}
	return result, nil
}

// GetProfile returns the cached profile.
func (r *RewardRepository) GetProfile(ctx context.Context, userID string) (*reward.Profile, error) {
	query := `
		SELECT user_id, total_xp, current_level, updated_at
		FROM user_reward_profiles
		WHERE user_id = $1
	`

	var p reward.Profile
	err := r.conn.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.TotalXP, &p.CurrentLevel, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, shared.WrapError("reward", "GetProfile", shared.ErrStorage, "query failed", err)
	}
	return &p, nil
}

// ListTransactions returns the user's ledger, newest first.
func (r *RewardRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*reward.XPTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, user_id, amount, reason, COALESCE(reference_id, ''), created_at
		FROM xp_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, shared.WrapError("reward", "ListTransactions", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var out []*reward.XPTransaction
	for rows.Next() {
		var (
			tx     reward.XPTransaction
			reason string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &reason, &tx.ReferenceID, &tx.CreatedAt); err != nil {
			return nil, shared.WrapError("reward", "ListTransactions", shared.ErrStorage, "scan failed", err)
		}
		tx.Reason = reward.Reason(reason)
		out = append(out, &tx)
	}
	return out, rows.Err()
}

// SumLedger returns the true ledger sum for a user.
func (r *RewardRepository) SumLedger(ctx context.Context, userID string) (int, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM xp_transactions WHERE user_id = $1`

	var sum int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, shared.WrapError("reward", "SumLedger", shared.ErrStorage, "query failed", err)
	}
	return sum, nil
}

// Reconcile rewrites drifted profile caches from the ledger sum.
func (r *RewardRepository) Reconcile(ctx context.Context, table *reward.LevelTable) (int, error) {
	// One statement repairs every drifted total and reports who changed.
	repairTotals := `
		UPDATE user_reward_profiles p
		SET total_xp = s.ledger_sum,
		    updated_at = NOW()
		FROM (
			SELECT user_id, COALESCE(SUM(amount), 0) AS ledger_sum
			FROM xp_transactions
			GROUP BY user_id
		) s
		WHERE p.user_id = s.user_id AND p.total_xp <> s.ledger_sum
		RETURNING p.user_id, p.total_xp
	`

	rows, err := r.conn.Query(ctx, repairTotals)
	if err != nil {
		return 0, shared.WrapError("reward", "Reconcile", shared.ErrStorage, "repair query failed", err)
	}

	type repaired struct {
		userID string
		total  int
	}
	var fixed []repaired
	for rows.Next() {
		var f repaired
		if err := rows.Scan(&f.userID, &f.total); err != nil {
			rows.Close()
			return 0, shared.WrapError("reward", "Reconcile", shared.ErrStorage, "scan failed", err)
		}
		fixed = append(fixed, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, shared.WrapError("reward", "Reconcile", shared.ErrStorage, "row iteration failed", err)
	}

	// Levels only move up, even during repair.
	raiseLevel := `
		UPDATE user_reward_profiles
		SET current_level = $2
		WHERE user_id = $1 AND current_level < $2
	`
	for _, f := range fixed {
		level := table.LevelFor(f.total).Number
		if _, err := r.conn.Exec(ctx, raiseLevel, f.userID, level); err != nil {
			return 0, shared.WrapError("reward", "Reconcile", shared.ErrStorage, "level repair failed", err)
		}
	}
	return len(fixed), nil
}

// LoadLevels returns the level table rows.
func (r *RewardRepository) LoadLevels(ctx context.Context) ([]reward.Level, error) {
	query := `SELECT level_number, xp_required, title FROM levels ORDER BY level_number`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, shared.WrapError("reward", "LoadLevels", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var out []reward.Level
	for rows.Next() {
		var lvl reward.Level
		if err := rows.Scan(&lvl.Number, &lvl.XPRequired, &lvl.Title); err != nil {
			return nil, shared.WrapError("reward", "LoadLevels", shared.ErrStorage, "scan failed", err)
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}
