// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET REWARD PROFILE QUERY
// The profile screen in one read: total XP, level, progress toward the next
// level, and the streak. Users who never earned anything get a zero
// profile, not an error.
// ══════════════════════════════════════════════════════════════════════════════

// GetRewardProfileQuery contains the parameters for a profile read.
type GetRewardProfileQuery struct {
	// UserID - the profile owner.
	UserID string

	// IncludeStreak - include the current streak in the response.
	IncludeStreak bool
}

// Validate validates the query parameters.
func (q *GetRewardProfileQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_reward_profile: user_id is required")
	}
	return nil
}

// RewardProfileDTO is the profile view.
type RewardProfileDTO struct {
	// UserID - profile owner.
	UserID string `json:"user_id"`

	// TotalXP - total accumulated XP.
	TotalXP int `json:"total_xp"`

	// Level - current level number.
	Level int `json:"level"`

	// LevelTitle - display title of the current level.
	LevelTitle string `json:"level_title"`

	// XPIntoLevel - XP accumulated past the current threshold.
	XPIntoLevel int `json:"xp_into_level"`

	// XPForNextLevel - XP still needed for the next level. Zero at the top.
	XPForNextLevel int `json:"xp_for_next_level"`

	// PercentToNextLevel - progress bar fill, 0..1.
	PercentToNextLevel float64 `json:"percent_to_next_level"`

	// NextLevelTitle - title of the next level, empty at the top.
	NextLevelTitle string `json:"next_level_title,omitempty"`

	// CurrentStreak and LongestStreak - daily streak, when requested.
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`

	// StreakActive - whether the streak survives today.
	StreakActive bool `json:"streak_active"`

	// UpdatedAt - last profile cache update.
	UpdatedAt time.Time `json:"updated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetRewardProfileHandler handles the GetRewardProfileQuery.
type GetRewardProfileHandler struct {
	rewardRepo reward.Repository
	streakRepo streak.Repository
	levels     *reward.LevelTable
}

// NewGetRewardProfileHandler creates a new GetRewardProfileHandler.
func NewGetRewardProfileHandler(
	rewardRepo reward.Repository,
	streakRepo streak.Repository,
	levels *reward.LevelTable,
) *GetRewardProfileHandler {
	return &GetRewardProfileHandler{
		rewardRepo: rewardRepo,
		streakRepo: streakRepo,
		levels:     levels,
	}
}

// Handle executes the profile query.
func (h *GetRewardProfileHandler) Handle(ctx context.Context, q GetRewardProfileQuery) (*RewardProfileDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_reward_profile: validation failed: %w", err)
	}

	profile, err := h.rewardRepo.GetProfile(ctx, q.UserID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("get_reward_profile: profile lookup failed: %w", err)
		}
		// Never earned anything: a fresh zero profile.
		profile = &reward.Profile{UserID: q.UserID, CurrentLevel: 1}
	}

	progress := h.levels.ProgressFor(profile.TotalXP)
	dto := &RewardProfileDTO{
		UserID:             profile.UserID,
		TotalXP:            profile.TotalXP,
		Level:              profile.CurrentLevel,
		LevelTitle:         progress.Level.Title,
		XPIntoLevel:        progress.XPIntoLevel,
		PercentToNextLevel: progress.PercentToNext,
		UpdatedAt:          profile.UpdatedAt,
	}
	if progress.NextLevel != nil {
		dto.XPForNextLevel = progress.XPForNext
		dto.NextLevelTitle = progress.NextLevel.Title
	}

	if q.IncludeStreak {
		s, err := h.streakRepo.Get(ctx, q.UserID)
		if err != nil && !shared.IsNotFound(err) {
			return nil, fmt.Errorf("get_reward_profile: streak lookup failed: %w", err)
		}
		if err == nil {
			dto.CurrentStreak = s.Current
			dto.LongestStreak = s.Longest
			dto.StreakActive = s.IsActiveAsOf(time.Now().UTC())
		}
	}

	return dto, nil
}
