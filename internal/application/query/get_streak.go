package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/domain/streak"
	"github.com/lernhub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// The streak widget: current count, record, and whether today still counts.
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakQuery contains the parameters for a streak read.
type GetStreakQuery struct {
	// UserID - the streak owner.
	UserID string
}

// Validate validates the query parameters.
func (q *GetStreakQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_streak: user_id is required")
	}
	return nil
}

// StreakDTO is the streak view.
type StreakDTO struct {
	// UserID - streak owner.
	UserID string `json:"user_id"`

	// CurrentStreak - consecutive active days.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - personal record.
	LongestStreak int `json:"longest_streak"`

	// Active - the last activity was today or yesterday; the streak is
	// still alive.
	Active bool `json:"active"`

	// ActiveToday - the user already has qualifying activity today.
	ActiveToday bool `json:"active_today"`

	// LastActivityDate - UTC calendar day of the last activity,
	// "2006-01-02". Empty for a fresh user.
	LastActivityDate string `json:"last_activity_date,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakHandler handles the GetStreakQuery.
type GetStreakHandler struct {
	streakRepo streak.Repository
}

// NewGetStreakHandler creates a new GetStreakHandler.
func NewGetStreakHandler(streakRepo streak.Repository) *GetStreakHandler {
	return &GetStreakHandler{streakRepo: streakRepo}
}

// Handle executes the streak query.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (*StreakDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_streak: validation failed: %w", err)
	}

	s, err := h.streakRepo.Get(ctx, q.UserID)
	if err != nil {
		if shared.IsNotFound(err) {
			// No activity yet: an empty streak, not an error.
			return &StreakDTO{UserID: q.UserID}, nil
		}
		return nil, fmt.Errorf("get_streak: lookup failed: %w", err)
	}

	now := time.Now().UTC()
	dto := &StreakDTO{
		UserID:        q.UserID,
		CurrentStreak: s.Current,
		LongestStreak: s.Longest,
		Active:        s.IsActiveAsOf(now),
	}
	if !s.LastActivityDate.IsZero() {
		dto.LastActivityDate = timeutil.FormatDate(s.LastActivityDate)
		dto.ActiveToday = timeutil.SameDay(s.LastActivityDate, now)
	}
	return dto, nil
}
