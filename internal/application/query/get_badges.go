package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/badge"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BADGES QUERY
// The user's trophy case: earned badges with unlock timestamps.
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgesQuery contains the parameters for a badge read.
type GetBadgesQuery struct {
	// UserID - the badge owner.
	UserID string
}

// Validate validates the query parameters.
func (q *GetBadgesQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_badges: user_id is required")
	}
	return nil
}

// BadgeDTO is one earned badge in the response.
type BadgeDTO struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Rarity      string    `json:"rarity"`
	EarnedAt    time.Time `json:"earned_at"`
}

// BadgesDTO is the trophy case.
type BadgesDTO struct {
	UserID string     `json:"user_id"`
	Badges []BadgeDTO `json:"badges"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgesHandler handles the GetBadgesQuery.
type GetBadgesHandler struct {
	badgeRepo badge.Repository
}

// NewGetBadgesHandler creates a new GetBadgesHandler.
func NewGetBadgesHandler(badgeRepo badge.Repository) *GetBadgesHandler {
	return &GetBadgesHandler{badgeRepo: badgeRepo}
}

// Handle executes the badges query.
func (h *GetBadgesHandler) Handle(ctx context.Context, q GetBadgesQuery) (*BadgesDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_badges: validation failed: %w", err)
	}

	badges, unlocks, err := h.badgeRepo.ListEarned(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_badges: lookup failed: %w", err)
	}

	earnedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		earnedAt[u.BadgeID] = u.EarnedAt
	}

	dto := &BadgesDTO{
		UserID: q.UserID,
		Badges: make([]BadgeDTO, 0, len(badges)),
	}
	for _, b := range badges {
		dto.Badges = append(dto.Badges, BadgeDTO{
			Code:        b.Code,
			Name:        b.Name,
			Description: b.Description,
			Category:    string(b.Category),
			Rarity:      string(b.Rarity),
			EarnedAt:    earnedAt[b.ID],
		})
	}
	return dto, nil
}
