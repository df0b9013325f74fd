package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lernhub/progress-engine/internal/domain/badge"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/domain/streak"
	"github.com/lernhub/progress-engine/pkg/timeutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type stubRewardRepo struct {
	profile      *reward.Profile
	transactions []*reward.XPTransaction
}

func (r *stubRewardRepo) Award(context.Context, *reward.XPTransaction, *reward.LevelTable) (reward.AwardResult, error) {
	return reward.AwardResult{}, shared.ErrStorage
}

func (r *stubRewardRepo) GetProfile(_ context.Context, userID string) (*reward.Profile, error) {
	if r.profile == nil || r.profile.UserID != userID {
		return nil, shared.ErrProfileNotFound
	}
	return r.profile, nil
}

func (r *stubRewardRepo) ListTransactions(_ context.Context, userID string, limit, offset int) ([]*reward.XPTransaction, error) {
	var out []*reward.XPTransaction
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubRewardRepo) SumLedger(context.Context, string) (int, error) { return 0, nil }

func (r *stubRewardRepo) Reconcile(context.Context, *reward.LevelTable) (int, error) { return 0, nil }

func (r *stubRewardRepo) LoadLevels(context.Context) ([]reward.Level, error) {
	return reward.DefaultLevels, nil
}

type stubStreakRepo struct {
	streak *streak.Streak
}

func (r *stubStreakRepo) Get(_ context.Context, userID string) (*streak.Streak, error) {
	if r.streak == nil || r.streak.UserID != userID {
		return nil, shared.ErrStreakNotFound
	}
	return r.streak, nil
}

func (r *stubStreakRepo) Touch(context.Context, string, time.Time) (*streak.Streak, streak.TouchResult, error) {
	return nil, streak.TouchResult{}, shared.ErrStorage
}

type stubBadgeRepo struct {
	badges  []*badge.Badge
	unlocks []*badge.UserBadge
}

func (r *stubBadgeRepo) GetByCode(context.Context, string) (*badge.Badge, error) {
	return nil, shared.ErrBadgeNotFound
}

func (r *stubBadgeRepo) ListByCategory(context.Context, badge.Category) ([]*badge.Badge, error) {
	return nil, nil
}

func (r *stubBadgeRepo) ListEarned(context.Context, string) ([]*badge.Badge, []*badge.UserBadge, error) {
	return r.badges, r.unlocks, nil
}

func (r *stubBadgeRepo) Grant(context.Context, string, string, time.Time) error {
	return shared.ErrBadgeAlreadyEarned
}

func (r *stubBadgeRepo) HasEarned(context.Context, string, string) (bool, error) {
	return false, nil
}

func levels(t *testing.T) *reward.LevelTable {
	t.Helper()
	table, err := reward.NewLevelTable(reward.DefaultLevels)
	require.NoError(t, err)
	return table
}

// ─────────────────────────────────────────────────────────────────────────────
// GetRewardProfile
// ─────────────────────────────────────────────────────────────────────────────

func TestGetRewardProfile(t *testing.T) {
	rewards := &stubRewardRepo{profile: &reward.Profile{UserID: "u1", TotalXP: 175, CurrentLevel: 2}}
	streaks := &stubStreakRepo{streak: &streak.Streak{
		UserID: "u1", Current: 4, Longest: 9,
		LastActivityDate: timeutil.Today(),
	}}
	h := NewGetRewardProfileHandler(rewards, streaks, levels(t))

	dto, err := h.Handle(context.Background(), GetRewardProfileQuery{UserID: "u1", IncludeStreak: true})
	require.NoError(t, err)

	assert.Equal(t, 175, dto.TotalXP)
	assert.Equal(t, 2, dto.Level)
	assert.Equal(t, 75, dto.XPIntoLevel)
	assert.Equal(t, 75, dto.XPForNextLevel)
	assert.InDelta(t, 0.5, dto.PercentToNextLevel, 1e-9)
	assert.Equal(t, 4, dto.CurrentStreak)
	assert.Equal(t, 9, dto.LongestStreak)
	assert.True(t, dto.StreakActive)
}

func TestGetRewardProfileFreshUser(t *testing.T) {
	h := NewGetRewardProfileHandler(&stubRewardRepo{}, &stubStreakRepo{}, levels(t))

	dto, err := h.Handle(context.Background(), GetRewardProfileQuery{UserID: "nobody", IncludeStreak: true})
	require.NoError(t, err)

	assert.Zero(t, dto.TotalXP)
	assert.Equal(t, 1, dto.Level)
	assert.Zero(t, dto.CurrentStreak)
	assert.False(t, dto.StreakActive)
}

func TestGetRewardProfileRequiresUser(t *testing.T) {
	h := NewGetRewardProfileHandler(&stubRewardRepo{}, &stubStreakRepo{}, levels(t))
	_, err := h.Handle(context.Background(), GetRewardProfileQuery{})
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// GetXPHistory
// ─────────────────────────────────────────────────────────────────────────────

func TestGetXPHistoryPaginates(t *testing.T) {
	repo := &stubRewardRepo{}
	for i := 0; i < 30; i++ {
		repo.transactions = append(repo.transactions, &reward.XPTransaction{
			ID: "tx", UserID: "u1", Amount: 15, Reason: reward.ReasonCorrectAnswer,
		})
	}
	h := NewGetXPHistoryHandler(repo)

	dto, err := h.Handle(context.Background(), GetXPHistoryQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, dto.Transactions, 20, "default page size")
	assert.Equal(t, 20, dto.Limit)

	dto, err = h.Handle(context.Background(), GetXPHistoryQuery{UserID: "u1", Limit: 500, Offset: 25})
	require.NoError(t, err)
	assert.Len(t, dto.Transactions, 5)
	assert.Equal(t, maxHistoryLimit, dto.Limit, "limit clamped")
}

// ─────────────────────────────────────────────────────────────────────────────
// GetStreak
// ─────────────────────────────────────────────────────────────────────────────

func TestGetStreak(t *testing.T) {
	yesterday := timeutil.Today().AddDate(0, 0, -1)
	h := NewGetStreakHandler(&stubStreakRepo{streak: &streak.Streak{
		UserID: "u1", Current: 5, Longest: 12, LastActivityDate: yesterday,
	}})

	dto, err := h.Handle(context.Background(), GetStreakQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 5, dto.CurrentStreak)
	assert.Equal(t, 12, dto.LongestStreak)
	assert.True(t, dto.Active, "yesterday still counts")
	assert.False(t, dto.ActiveToday)
	assert.Equal(t, timeutil.FormatDate(yesterday), dto.LastActivityDate)
}

func TestGetStreakFreshUser(t *testing.T) {
	h := NewGetStreakHandler(&stubStreakRepo{})

	dto, err := h.Handle(context.Background(), GetStreakQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, dto.CurrentStreak)
	assert.False(t, dto.Active)
	assert.Empty(t, dto.LastActivityDate)
}

// ─────────────────────────────────────────────────────────────────────────────
// GetBadges
// ─────────────────────────────────────────────────────────────────────────────

func TestGetBadges(t *testing.T) {
	earnedAt := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	h := NewGetBadgesHandler(&stubBadgeRepo{
		badges: []*badge.Badge{
			{ID: "b1", Code: "streak_7", Name: "On Fire", Category: badge.CategoryStreak, Rarity: badge.RarityRare},
		},
		unlocks: []*badge.UserBadge{
			{UserID: "u1", BadgeID: "b1", EarnedAt: earnedAt},
		},
	})

	dto, err := h.Handle(context.Background(), GetBadgesQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, dto.Badges, 1)
	assert.Equal(t, "streak_7", dto.Badges[0].Code)
	assert.Equal(t, "rare", dto.Badges[0].Rarity)
	assert.Equal(t, earnedAt, dto.Badges[0].EarnedAt)
}
