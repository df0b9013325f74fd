package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

func defaultTable(t *testing.T) *LevelTable {
	t.Helper()
	table, err := NewLevelTable(DefaultLevels)
	require.NoError(t, err)
	return table
}

func TestNewLevelTableEmpty(t *testing.T) {
	_, err := NewLevelTable(nil)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestLevelFor(t *testing.T) {
	table := defaultTable(t)

	tests := []struct {
		totalXP int
		level   int
	}{
		{totalXP: 0, level: 1},
		{totalXP: 99, level: 1},
		{totalXP: 100, level: 2},
		{totalXP: 249, level: 2},
		{totalXP: 250, level: 3},
		{totalXP: 999, level: 4},
		{totalXP: 1000, level: 5},
		{totalXP: 7499, level: 9},
		{totalXP: 7500, level: 10},
		{totalXP: 100000, level: 10},
	}

	for _, tt := range tests {
		got := table.LevelFor(tt.totalXP)
		assert.Equal(t, tt.level, got.Number, "totalXP=%d", tt.totalXP)
	}
}

func TestLevelForUnsortedInput(t *testing.T) {
	table, err := NewLevelTable([]Level{
		{Number: 3, XPRequired: 250},
		{Number: 1, XPRequired: 0},
		{Number: 2, XPRequired: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, table.LevelFor(120).Number)
}

func TestNext(t *testing.T) {
	table := defaultTable(t)

	next, ok := table.Next(1)
	require.True(t, ok)
	assert.Equal(t, 2, next.Number)

	_, ok = table.Next(10)
	assert.False(t, ok)

	assert.Equal(t, 10, table.Max().Number)
}

func TestProgressFor(t *testing.T) {
	table := defaultTable(t)

	t.Run("mid level", func(t *testing.T) {
		p := table.ProgressFor(175)
		assert.Equal(t, 2, p.Level.Number)
		require.NotNil(t, p.NextLevel)
		assert.Equal(t, 3, p.NextLevel.Number)
		assert.Equal(t, 75, p.XPIntoLevel)
		assert.Equal(t, 75, p.XPForNext)
		assert.InDelta(t, 0.5, p.PercentToNext, 1e-9)
	})

	t.Run("at threshold", func(t *testing.T) {
		p := table.ProgressFor(100)
		assert.Equal(t, 2, p.Level.Number)
		assert.Equal(t, 0, p.XPIntoLevel)
		assert.InDelta(t, 0, p.PercentToNext, 1e-9)
	})

	t.Run("top level", func(t *testing.T) {
		p := table.ProgressFor(9000)
		assert.Equal(t, 10, p.Level.Number)
		assert.Nil(t, p.NextLevel)
		assert.Equal(t, 1500, p.XPIntoLevel)
		assert.Equal(t, 1.0, p.PercentToNext)
	})
}

func TestXPTransactionValidate(t *testing.T) {
	valid := XPTransaction{UserID: "u1", Amount: XPPerCorrectAnswer, Reason: ReasonCorrectAnswer}
	assert.NoError(t, valid.Validate())

	missingUser := valid
	missingUser.UserID = ""
	assert.ErrorIs(t, missingUser.Validate(), shared.ErrEmptyValue)

	zeroAmount := valid
	zeroAmount.Amount = 0
	assert.ErrorIs(t, zeroAmount.Validate(), shared.ErrNegativeValue)

	badReason := valid
	badReason.Reason = "refund"
	assert.ErrorIs(t, badReason.Validate(), shared.ErrInvalidInput)
}

func TestAwardConstants(t *testing.T) {
	// Flat awards regardless of question difficulty.
	assert.Equal(t, 15, XPPerCorrectAnswer)
	assert.Equal(t, 50, XPPerLessonComplete)
}
