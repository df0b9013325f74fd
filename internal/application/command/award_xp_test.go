package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

func newAwardFixture(t *testing.T) (*AwardXPHandler, *fakeRewardRepo, *fakePublisher) {
	t.Helper()
	table, err := reward.NewLevelTable(reward.DefaultLevels)
	require.NoError(t, err)
	repo := newFakeRewardRepo()
	pub := &fakePublisher{}
	return NewAwardXPHandler(repo, table, pub), repo, pub
}

func TestAwardXPAppendsLedgerAndBumpsTotal(t *testing.T) {
	h, repo, pub := newAwardFixture(t)

	res, err := h.Handle(context.Background(), AwardXPCommand{
		UserID:      "u1",
		Amount:      reward.XPPerCorrectAnswer,
		Reason:      reward.ReasonCorrectAnswer,
		ReferenceID: "q1",
	})
	require.NoError(t, err)

	assert.Equal(t, 15, res.NewTotal)
	assert.Equal(t, 1, res.OldLevel)
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.LeveledUp())
	assert.NotEmpty(t, res.TransactionID)

	sum, err := repo.SumLedger(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 15, sum)

	assert.Len(t, pub.published(shared.EventXPAwarded), 1)
	assert.Empty(t, pub.published(shared.EventLevelUp))
}

func TestAwardXPEmitsLevelUpAtThreshold(t *testing.T) {
	h, _, pub := newAwardFixture(t)
	ctx := context.Background()

	// 90 XP, then 15 more crosses the level 2 threshold at 100.
	for i := 0; i < 6; i++ {
		_, err := h.Handle(ctx, AwardXPCommand{UserID: "u1", Amount: 15, Reason: reward.ReasonCorrectAnswer})
		require.NoError(t, err)
	}
	require.Empty(t, pub.published(shared.EventLevelUp))

	res, err := h.Handle(ctx, AwardXPCommand{UserID: "u1", Amount: 15, Reason: reward.ReasonCorrectAnswer})
	require.NoError(t, err)

	assert.Equal(t, 105, res.NewTotal)
	assert.True(t, res.LeveledUp())
	assert.Equal(t, 1, res.OldLevel)
	assert.Equal(t, 2, res.NewLevel)
	require.Len(t, res.Events, 2)
	assert.Len(t, pub.published(shared.EventLevelUp), 1)
}

func TestAwardXPValidation(t *testing.T) {
	h, _, _ := newAwardFixture(t)
	ctx := context.Background()

	_, err := h.Handle(ctx, AwardXPCommand{Amount: 10, Reason: reward.ReasonCorrectAnswer})
	assert.Error(t, err, "missing user")

	_, err = h.Handle(ctx, AwardXPCommand{UserID: "u1", Amount: 0, Reason: reward.ReasonCorrectAnswer})
	assert.Error(t, err, "zero amount")

	_, err = h.Handle(ctx, AwardXPCommand{UserID: "u1", Amount: 10, Reason: "refund"})
	assert.Error(t, err, "unknown reason")
}

func TestAwardXPPropagatesLedgerFault(t *testing.T) {
	h, repo, pub := newAwardFixture(t)
	repo.failAward = true

	_, err := h.Handle(context.Background(), AwardXPCommand{
		UserID: "u1", Amount: 15, Reason: reward.ReasonCorrectAnswer,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStorage)
	assert.Empty(t, pub.events, "no events on a failed award")
}
