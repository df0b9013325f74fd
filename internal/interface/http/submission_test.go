package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lernhub/progress-engine/internal/application/command"
	"github.com/lernhub/progress-engine/internal/domain/attempt"
	"github.com/lernhub/progress-engine/internal/domain/lesson"
	"github.com/lernhub/progress-engine/internal/domain/question"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/domain/streak"
	"github.com/lernhub/progress-engine/internal/infrastructure/identity"
	"github.com/lernhub/progress-engine/pkg/logger"
)

// Minimal single-user fakes backing a real submission pipeline, so the
// tests below cover the wire format end to end.

type memQuestionRepo struct{ q *question.Question }

func (r *memQuestionRepo) GetByID(_ context.Context, id string) (*question.Question, error) {
	if r.q != nil && r.q.ID == id {
		return r.q, nil
	}
	return nil, shared.ErrQuestionNotFound
}

func (r *memQuestionRepo) ListByLesson(context.Context, string) ([]*question.Question, error) {
	return []*question.Question{r.q}, nil
}

func (r *memQuestionRepo) ListRequiredIDsByLesson(context.Context, string) ([]string, error) {
	if r.q != nil && r.q.IsRequired {
		return []string{r.q.ID}, nil
	}
	return nil, nil
}

type memAttemptRepo struct{ attempts []*attempt.Attempt }

func (r *memAttemptRepo) Record(_ context.Context, a *attempt.Attempt) error {
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *memAttemptRepo) CountForQuestion(context.Context, string, string) (int, error) {
	return len(r.attempts), nil
}

func (r *memAttemptRepo) CorrectQuestionIDs(context.Context, string, string) ([]string, error) {
	var out []string
	for _, a := range r.attempts {
		if a.IsCorrect {
			out = append(out, a.QuestionID)
		}
	}
	return out, nil
}

func (r *memAttemptRepo) ListForUser(context.Context, string, string, int) ([]*attempt.Attempt, error) {
	return r.attempts, nil
}

type memStreakRepo struct{ s *streak.Streak }

func (r *memStreakRepo) Get(_ context.Context, userID string) (*streak.Streak, error) {
	if r.s == nil {
		return nil, shared.ErrStreakNotFound
	}
	return r.s, nil
}

func (r *memStreakRepo) Touch(_ context.Context, userID string, now time.Time) (*streak.Streak, streak.TouchResult, error) {
	if r.s == nil {
		r.s = &streak.Streak{UserID: userID}
	}
	res := r.s.Touch(now)
	return r.s, res, nil
}

type memLessonRepo struct{ p *lesson.Progress }

func (r *memLessonRepo) GetProgress(context.Context, string, string) (*lesson.Progress, error) {
	if r.p == nil {
		return nil, shared.ErrProgressNotFound
	}
	return r.p, nil
}

func (r *memLessonRepo) MarkViewed(_ context.Context, userID, lessonID string, now time.Time) error {
	if r.p == nil {
		r.p = &lesson.Progress{UserID: userID, LessonID: lessonID, Status: lesson.StatusInProgress}
	}
	r.p.LastViewedAt = now
	return nil
}

func (r *memLessonRepo) MarkCompleted(_ context.Context, userID, lessonID string, now time.Time) (bool, error) {
	if r.p != nil && r.p.Status == lesson.StatusCompleted {
		return false, nil
	}
	completedAt := now
	r.p = &lesson.Progress{
		UserID: userID, LessonID: lessonID,
		Status: lesson.StatusCompleted, CompletedAt: &completedAt,
	}
	return true, nil
}

func (r *memLessonRepo) ListForUser(context.Context, string, int) ([]*lesson.Progress, error) {
	return nil, nil
}

type memRewardRepo struct {
	total int
	level int
}

func (r *memRewardRepo) Award(_ context.Context, tx *reward.XPTransaction, table *reward.LevelTable) (reward.AwardResult, error) {
	if r.level == 0 {
		r.level = 1
	}
	old := r.level
	r.total += tx.Amount
	if lvl := table.LevelFor(r.total).Number; lvl > r.level {
		r.level = lvl
	}
	return reward.AwardResult{NewTotal: r.total, OldLevel: old, NewLevel: r.level}, nil
}

func (r *memRewardRepo) GetProfile(context.Context, string) (*reward.Profile, error) {
	return nil, shared.ErrProfileNotFound
}

func (r *memRewardRepo) ListTransactions(context.Context, string, int, int) ([]*reward.XPTransaction, error) {
	return nil, nil
}

func (r *memRewardRepo) SumLedger(context.Context, string) (int, error) { return r.total, nil }

func (r *memRewardRepo) Reconcile(context.Context, *reward.LevelTable) (int, error) { return 0, nil }

func (r *memRewardRepo) LoadLevels(context.Context) ([]reward.Level, error) {
	return reward.DefaultLevels, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(shared.Event) error { return nil }

type nopDeferrer struct{}

func (nopDeferrer) Defer(string, func(ctx context.Context) error) {}

func newSubmissionServer(t *testing.T, resolver *identity.Resolver) *Server {
	t.Helper()

	table, err := reward.NewLevelTable(reward.DefaultLevels)
	require.NoError(t, err)

	doc, _ := json.Marshal(map[string]float64{"value": 5})
	q := &question.Question{
		ID:            "q1",
		LessonID:      "l1",
		Type:          question.TypeNumeric,
		CorrectAnswer: doc,
		IsRequired:    true,
	}

	questions := &memQuestionRepo{q: q}
	attempts := &memAttemptRepo{}
	streaks := &memStreakRepo{}
	lessons := &memLessonRepo{}
	rewards := &memRewardRepo{}
	log := logger.New(logger.Options{Output: io.Discard})

	awardXP := command.NewAwardXPHandler(rewards, table, nopPublisher{})
	completeLesson := command.NewCompleteLessonHandler(
		questions, attempts, streaks, lessons, awardXP, nopPublisher{}, log,
	)
	submitAnswer := command.NewSubmitAnswerHandler(
		questions, attempts, lessons,
		awardXP, completeLesson, nopDeferrer{}, nopPublisher{}, log,
	)

	return newTestServer(t, func(cfg *Config, deps *Dependencies) {
		deps.SubmitAnswerHandler = submitAnswer
		deps.Identity = resolver
	})
}

func TestServer_SubmissionReturnsEventsAndSuccess(t *testing.T) {
	resolver := identity.NewResolver([]byte("test-secret"), "")
	token, err := resolver.Mint("user-7", time.Hour)
	require.NoError(t, err)

	s := newSubmissionServer(t, resolver)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions",
		strings.NewReader(`{"question_id":"q1","answer":5}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Success   bool `json:"success"`
			IsCorrect bool `json:"is_correct"`
			XPAwarded int  `json:"xp_awarded"`
			Events    []struct {
				Type    string                 `json:"type"`
				Payload map[string]interface{} `json:"payload"`
			} `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	assert.True(t, envelope.Success)
	assert.True(t, envelope.Data.Success)
	assert.True(t, envelope.Data.IsCorrect)
	assert.Equal(t, reward.XPPerCorrectAnswer, envelope.Data.XPAwarded)

	// The event list reaches the caller so the presentation layer can
	// react to awards without a second request.
	types := make(map[string]int)
	for _, e := range envelope.Data.Events {
		require.NotNil(t, e.Payload, "every event carries its payload")
		types[e.Type]++
	}
	assert.Equal(t, 1, types[string(shared.EventAttemptRecorded)])
	assert.Equal(t, 1, types[string(shared.EventXPAwarded)])
}

func TestServer_GuestSubmissionHasEmptyEventList(t *testing.T) {
	s := newSubmissionServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions",
		strings.NewReader(`{"question_id":"q1","answer":5}`))
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"events":[]`)
	assert.Contains(t, body, `"guest":true`)
	assert.Contains(t, body, `"success":true`)
}
