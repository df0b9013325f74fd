package eventhandler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lernhub/progress-engine/internal/application/command"
	"github.com/lernhub/progress-engine/internal/domain/badge"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeBadgeRepo struct {
	mu      sync.Mutex
	catalog []*badge.Badge
	earned  map[string]map[string]time.Time // userID -> badgeID -> earnedAt
}

func newFakeBadgeRepo(catalog []*badge.Badge) *fakeBadgeRepo {
	return &fakeBadgeRepo{catalog: catalog, earned: make(map[string]map[string]time.Time)}
}

func (r *fakeBadgeRepo) GetByCode(_ context.Context, code string) (*badge.Badge, error) {
	for _, b := range r.catalog {
		if b.Code == code {
			return b, nil
		}
	}
	return nil, shared.ErrBadgeNotFound
}

func (r *fakeBadgeRepo) ListByCategory(_ context.Context, category badge.Category) ([]*badge.Badge, error) {
	var out []*badge.Badge
	for _, b := range r.catalog {
		if b.Category == category {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBadgeRepo) ListEarned(_ context.Context, userID string) ([]*badge.Badge, []*badge.UserBadge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var badges []*badge.Badge
	var unlocks []*badge.UserBadge
	for badgeID, at := range r.earned[userID] {
		for _, b := range r.catalog {
			if b.ID == badgeID {
				badges = append(badges, b)
				unlocks = append(unlocks, &badge.UserBadge{UserID: userID, BadgeID: badgeID, EarnedAt: at})
			}
		}
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].Code < badges[j].Code })
	return badges, unlocks, nil
}

func (r *fakeBadgeRepo) Grant(_ context.Context, userID, badgeID string, earnedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.earned[userID] == nil {
		r.earned[userID] = make(map[string]time.Time)
	}
	if _, ok := r.earned[userID][badgeID]; ok {
		return shared.ErrBadgeAlreadyEarned
	}
	r.earned[userID][badgeID] = earnedAt
	return nil
}

func (r *fakeBadgeRepo) HasEarned(_ context.Context, userID, badgeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.earned[userID][badgeID]
	return ok, nil
}

type fakeRewardRepo struct {
	mu           sync.Mutex
	transactions []*reward.XPTransaction
	totals       map[string]int
}

func newFakeRewardRepo() *fakeRewardRepo {
	return &fakeRewardRepo{totals: make(map[string]int)}
}

func (r *fakeRewardRepo) Award(_ context.Context, tx *reward.XPTransaction, table *reward.LevelTable) (reward.AwardResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *tx
	stored.ID = fmt.Sprintf("tx-%d", len(r.transactions)+1)
	tx.ID = stored.ID
	r.transactions = append(r.transactions, &stored)
	old := table.LevelFor(r.totals[tx.UserID]).Number
	r.totals[tx.UserID] += tx.Amount
	return reward.AwardResult{
		NewTotal: r.totals[tx.UserID],
		OldLevel: old,
		NewLevel: table.LevelFor(r.totals[tx.UserID]).Number,
	}, nil
}

func (r *fakeRewardRepo) GetProfile(context.Context, string) (*reward.Profile, error) {
	return nil, shared.ErrProfileNotFound
}

func (r *fakeRewardRepo) ListTransactions(context.Context, string, int, int) ([]*reward.XPTransaction, error) {
	return nil, nil
}

func (r *fakeRewardRepo) SumLedger(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals[userID], nil
}

func (r *fakeRewardRepo) Reconcile(context.Context, *reward.LevelTable) (int, error) { return 0, nil }

func (r *fakeRewardRepo) LoadLevels(context.Context) ([]reward.Level, error) {
	return reward.DefaultLevels, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testCatalog() []*badge.Badge {
	return []*badge.Badge{
		{ID: "b1", Code: "first_steps", Category: badge.CategoryAchievement, Rarity: badge.RarityCommon, XPRequired: 1},
		{ID: "b2", Code: "level_5", Category: badge.CategoryAchievement, Rarity: badge.RarityRare, XPRequired: 1000, BonusXP: 25},
		{ID: "b3", Code: "streak_3", Category: badge.CategoryStreak, Rarity: badge.RarityCommon, StreakRequired: 3, BonusXP: 10},
		{ID: "b4", Code: "streak_7", Category: badge.CategoryStreak, Rarity: badge.RarityRare, StreakRequired: 7, BonusXP: 25},
	}
}

func newFixture(t *testing.T) (*fakeBadgeRepo, *fakeRewardRepo, *command.AwardXPHandler) {
	t.Helper()
	table, err := reward.NewLevelTable(reward.DefaultLevels)
	require.NoError(t, err)
	badges := newFakeBadgeRepo(testCatalog())
	rewards := newFakeRewardRepo()
	awardXP := command.NewAwardXPHandler(rewards, table, &fakePublisher{})
	return badges, rewards, awardXP
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestOnXPAwardedUnlocksThresholdBadges(t *testing.T) {
	badges, _, awardXP := newFixture(t)
	h := NewOnXPAwardedHandler(badges, awardXP, quietLogger())

	err := h.Handle(shared.NewXPAwardedEvent("u1", 15, 15, "correct_answer", "q1"))
	require.NoError(t, err)

	earned, err := badges.HasEarned(context.Background(), "u1", "b1")
	require.NoError(t, err)
	assert.True(t, earned, "first_steps unlocks at 1 XP")

	earned, _ = badges.HasEarned(context.Background(), "u1", "b2")
	assert.False(t, earned, "level_5 needs 1000 XP")
}

func TestOnXPAwardedCreditsBadgeBonus(t *testing.T) {
	badges, rewards, awardXP := newFixture(t)
	h := NewOnXPAwardedHandler(badges, awardXP, quietLogger())

	err := h.Handle(shared.NewXPAwardedEvent("u1", 50, 1050, "lesson_complete", "l1"))
	require.NoError(t, err)

	earned, _ := badges.HasEarned(context.Background(), "u1", "b2")
	assert.True(t, earned)

	// first_steps has no bonus; level_5 credits 25.
	sum, err := rewards.SumLedger(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, sum)
}

func TestOnXPAwardedIsIdempotent(t *testing.T) {
	badges, rewards, awardXP := newFixture(t)
	h := NewOnXPAwardedHandler(badges, awardXP, quietLogger())

	event := shared.NewXPAwardedEvent("u1", 50, 1050, "lesson_complete", "l1")
	require.NoError(t, h.Handle(event))
	require.NoError(t, h.Handle(event))

	sum, _ := rewards.SumLedger(context.Background(), "u1")
	assert.Equal(t, 25, sum, "replayed event grants no second bonus")
}

func TestOnXPAwardedIgnoresBadgeBonusCredits(t *testing.T) {
	badges, rewards, awardXP := newFixture(t)
	h := NewOnXPAwardedHandler(badges, awardXP, quietLogger())

	err := h.Handle(shared.NewXPAwardedEvent("u1", 25, 1075, "badge_earned", "b2"))
	require.NoError(t, err)

	earned, _ := badges.HasEarned(context.Background(), "u1", "b2")
	assert.False(t, earned, "bonus credits must not feed back into unlocks")

	sum, _ := rewards.SumLedger(context.Background(), "u1")
	assert.Zero(t, sum)
}

func TestOnXPAwardedRejectsWrongEventType(t *testing.T) {
	badges, _, awardXP := newFixture(t)
	h := NewOnXPAwardedHandler(badges, awardXP, quietLogger())

	err := h.Handle(shared.NewLessonStartedEvent("u1", "l1"))
	assert.Error(t, err)
}

func TestOnStreakUpdatedUnlocksMilestones(t *testing.T) {
	badges, rewards, awardXP := newFixture(t)
	h := NewOnStreakUpdatedHandler(badges, awardXP, quietLogger())

	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("u1", 2, 2)))
	earned, _ := badges.HasEarned(context.Background(), "u1", "b3")
	assert.False(t, earned, "streak_3 needs 3 days")

	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("u1", 3, 3)))
	earned, _ = badges.HasEarned(context.Background(), "u1", "b3")
	assert.True(t, earned)

	sum, _ := rewards.SumLedger(context.Background(), "u1")
	assert.Equal(t, 10, sum, "streak_3 bonus credited")

	// A 7-day streak unlocks the next milestone; streak_3 stays single.
	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("u1", 7, 7)))
	earned, _ = badges.HasEarned(context.Background(), "u1", "b4")
	assert.True(t, earned)

	sum, _ = rewards.SumLedger(context.Background(), "u1")
	assert.Equal(t, 35, sum)
}
