package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lernhub/progress-engine/internal/domain/badge"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// The (user_id, badge_id) primary key makes Grant idempotent: a duplicate
// insert surfaces as ErrBadgeAlreadyEarned instead of a second unlock.
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

const badgeColumns = `id, code, name, description, category, rarity, xp_required, streak_required, bonus_xp, created_at`

// GetByCode returns a catalog entry.
func (r *BadgeRepository) GetByCode(ctx context.Context, code string) (*badge.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE code = $1`

	b, err := scanBadge(r.conn.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrBadgeNotFound
		}
		return nil, shared.WrapError("badge", "GetByCode", shared.ErrStorage, "query failed", err)
	}
	return b, nil
}

// ListByCategory returns catalog entries of one category.
func (r *BadgeRepository) ListByCategory(ctx context.Context, category badge.Category) ([]*badge.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE category = $1 ORDER BY xp_required, streak_required, code`

	rows, err := r.conn.Query(ctx, query, string(category))
	if err != nil {
		return nil, shared.WrapError("badge", "ListByCategory", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var out []*badge.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, shared.WrapError("badge", "ListByCategory", shared.ErrStorage, "scan failed", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListEarned returns the user's unlocked badges with unlock timestamps.
func (r *BadgeRepository) ListEarned(ctx context.Context, userID string) ([]*badge.Badge, []*badge.UserBadge, error) {
	query := `
		SELECT b.id, b.code, b.name, b.description, b.category, b.rarity,
		       b.xp_required, b.streak_required, b.bonus_xp, b.created_at,
		       ub.earned_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.earned_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, nil, shared.WrapError("badge", "ListEarned", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var (
		badges  []*badge.Badge
		unlocks []*badge.UserBadge
	)
	for rows.Next() {
		var (
			b        badge.Badge
			category string
			rarity   string
			earnedAt time.Time
		)
		err := rows.Scan(
			&b.ID, &b.Code, &b.Name, &b.Description, &category, &rarity,
			&b.XPRequired, &b.StreakRequired, &b.BonusXP, &b.CreatedAt,
			&earnedAt,
		)
		if err != nil {
			return nil, nil, shared.WrapError("badge", "ListEarned", shared.ErrStorage, "scan failed", err)
		}
		b.Category = badge.Category(category)
		b.Rarity = badge.Rarity(rarity)
		badges = append(badges, &b)
		unlocks = append(unlocks, &badge.UserBadge{UserID: userID, BadgeID: b.ID, EarnedAt: earnedAt})
	}
	return badges, unlocks, rows.Err()
}

// Grant records an unlock.
func (r *BadgeRepository) Grant(ctx context.Context, userID, badgeID string, earnedAt time.Time) error {
	query := `INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES ($1, $2, $3)`

	_, err := r.conn.Exec(ctx, query, userID, badgeID, earnedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrBadgeAlreadyEarned
		}
		return shared.WrapError("badge", "Grant", shared.ErrStorage, "insert failed", err)
	}
	return nil
}

// HasEarned reports whether the user already holds the badge.
func (r *BadgeRepository) HasEarned(ctx context.Context, userID, badgeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, userID, badgeID).Scan(&exists); err != nil {
		return false, shared.WrapError("badge", "HasEarned", shared.ErrStorage, "query failed", err)
	}
	return exists, nil
}

func scanBadge(row pgx.Row) (*badge.Badge, error) {
	var (
		b        badge.Badge
		category string
		rarity   string
	)
	err := row.Scan(
		&b.ID, &b.Code, &b.Name, &b.Description, &category, &rarity,
		&b.XPRequired, &b.StreakRequired, &b.BonusXP, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Category = badge.Category(category)
	b.Rarity = badge.Rarity(rarity)
	return &b, nil
}
