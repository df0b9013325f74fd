package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lernhub/progress-engine/internal/domain/attempt"
	"github.com/lernhub/progress-engine/internal/domain/question"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

type completeLessonFixture struct {
	handler   *CompleteLessonHandler
	questions *fakeQuestionRepo
	attempts  *fakeAttemptRepo
	streaks   *fakeStreakRepo
	lessons   *fakeLessonRepo
	rewards   *fakeRewardRepo
	publisher *fakePublisher
}

func newCompleteLessonFixture(t *testing.T, qs ...*question.Question) *completeLessonFixture {
	t.Helper()
	table, err := reward.NewLevelTable(reward.DefaultLevels)
	require.NoError(t, err)

	f := &completeLessonFixture{
		questions: newFakeQuestionRepo(qs...),
		attempts:  &fakeAttemptRepo{},
		streaks:   newFakeStreakRepo(),
		lessons:   newFakeLessonRepo(),
		rewards:   newFakeRewardRepo(),
		publisher: &fakePublisher{},
	}
	awardXP := NewAwardXPHandler(f.rewards, table, f.publisher)
	f.handler = NewCompleteLessonHandler(
		f.questions, f.attempts, f.streaks, f.lessons, awardXP, f.publisher, testLogger(),
	)
	return f
}

func (f *completeLessonFixture) recordCorrect(t *testing.T, userID, questionID, lessonID string) {
	t.Helper()
	err := f.attempts.Record(context.Background(), &attempt.Attempt{
		UserID: userID, QuestionID: questionID, LessonID: lessonID,
		Ordinal: 1, IsCorrect: true, Verdict: "correct", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func lessonQuestions() []*question.Question {
	return []*question.Question{
		{ID: "q1", LessonID: "l1", Type: question.TypeBoolean, IsRequired: true},
		{ID: "q2", LessonID: "l1", Type: question.TypeBoolean, IsRequired: true},
		{ID: "q3", LessonID: "l1", Type: question.TypeBoolean, IsRequired: false},
	}
}

func TestCompleteLessonNotAllAnswered(t *testing.T) {
	f := newCompleteLessonFixture(t, lessonQuestions()...)
	f.recordCorrect(t, "u1", "q1", "l1")

	res, err := f.handler.Handle(context.Background(), CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)

	assert.False(t, res.AllAnswered)
	assert.False(t, res.JustCompleted)
	assert.Zero(t, res.BonusXP)
	assert.Empty(t, f.publisher.events)

	_, err = f.streaks.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, shared.ErrStreakNotFound, "an incomplete lesson never touches the streak")
}

func TestCompleteLessonAwardsBonusOnce(t *testing.T) {
	f := newCompleteLessonFixture(t, lessonQuestions()...)
	f.recordCorrect(t, "u1", "q1", "l1")
	f.recordCorrect(t, "u1", "q2", "l1")
	// q3 is optional and stays unanswered.

	res, err := f.handler.Handle(context.Background(), CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)

	assert.True(t, res.AllAnswered)
	assert.True(t, res.JustCompleted)
	assert.Equal(t, reward.XPPerLessonComplete, res.BonusXP)
	assert.Equal(t, 50, res.NewTotal)
	assert.Equal(t, 1, res.StreakDays, "completion is the qualifying streak activity")
	assert.Len(t, f.publisher.published(shared.EventLessonCompleted), 1)
	assert.Len(t, f.publisher.published(shared.EventStreakUpdated), 1)

	// The second check sees the latch already fired.
	res2, err := f.handler.Handle(context.Background(), CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)

	assert.True(t, res2.AllAnswered)
	assert.False(t, res2.JustCompleted)
	assert.Zero(t, res2.BonusXP)
	assert.Zero(t, res2.StreakDays)
	assert.Len(t, f.publisher.published(shared.EventStreakUpdated), 1, "a lost latch never touches the streak")

	sum, err := f.rewards.SumLedger(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, sum, "bonus credited exactly once")
	assert.Len(t, f.publisher.published(shared.EventLessonCompleted), 1)
}

func TestCompleteLessonConcurrentChecksAwardOnce(t *testing.T) {
	f := newCompleteLessonFixture(t, lessonQuestions()...)
	f.recordCorrect(t, "u1", "q1", "l1")
	f.recordCorrect(t, "u1", "q2", "l1")

	const racers = 8
	results := make(chan *CompleteLessonResult, racers)
	for i := 0; i < racers; i++ {
		go func() {
			res, err := f.handler.Handle(context.Background(), CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
			assert.NoError(t, err)
			results <- res
		}()
	}

	winners := 0
	for i := 0; i < racers; i++ {
		if (<-results).JustCompleted {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one racer wins the latch")

	sum, err := f.rewards.SumLedger(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, sum)
}

func TestCompleteLessonNoRequiredQuestions(t *testing.T) {
	f := newCompleteLessonFixture(t, &question.Question{
		ID: "q1", LessonID: "l1", Type: question.TypeBoolean, IsRequired: false,
	})
	f.recordCorrect(t, "u1", "q1", "l1")

	res, err := f.handler.Handle(context.Background(), CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)
	assert.False(t, res.AllAnswered, "a lesson with no required questions never auto-completes")
}

func TestCompleteLessonValidation(t *testing.T) {
	f := newCompleteLessonFixture(t)

	_, err := f.handler.Handle(context.Background(), CompleteLessonCommand{LessonID: "l1"})
	assert.Error(t, err)

	_, err = f.handler.Handle(context.Background(), CompleteLessonCommand{UserID: "u1"})
	assert.Error(t, err)
}
