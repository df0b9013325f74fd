package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/attempt"
	"github.com/lernhub/progress-engine/internal/domain/lesson"
	"github.com/lernhub/progress-engine/internal/domain/question"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/domain/streak"
	"github.com/lernhub/progress-engine/pkg/logger"
)

// In-memory fakes for handler tests. Each fake honors the same contract as
// the postgres implementation, including the atomic award and the
// conditional completion latch.

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError, Output: discardWriter{}})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// ─────────────────────────────────────────────────────────────────────────────
// Question repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeQuestionRepo struct {
	questions map[string]*question.Question
}

func newFakeQuestionRepo(qs ...*question.Question) *fakeQuestionRepo {
	repo := &fakeQuestionRepo{questions: make(map[string]*question.Question)}
	for _, q := range qs {
		repo.questions[q.ID] = q
	}
	return repo
}

func (r *fakeQuestionRepo) GetByID(_ context.Context, id string) (*question.Question, error) {
	q, ok := r.questions[id]
	if !ok {
		return nil, shared.ErrQuestionNotFound
	}
	return q, nil
}

func (r *fakeQuestionRepo) ListByLesson(_ context.Context, lessonID string) ([]*question.Question, error) {
	var out []*question.Question
	for _, q := range r.questions {
		if q.LessonID == lessonID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *fakeQuestionRepo) ListRequiredIDsByLesson(_ context.Context, lessonID string) ([]string, error) {
	var out []string
	for _, q := range r.questions {
		if q.LessonID == lessonID && q.IsRequired {
			out = append(out, q.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Attempt repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*attempt.Attempt
	failNext bool
}

func (r *fakeAttemptRepo) Record(_ context.Context, a *attempt.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return shared.ErrStorage
	}
	stored := *a
	stored.ID = fmt.Sprintf("att-%d", len(r.attempts)+1)
	r.attempts = append(r.attempts, &stored)
	return nil
}

func (r *fakeAttemptRepo) CountForQuestion(_ context.Context, userID, questionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.attempts {
		if a.UserID == userID && a.QuestionID == questionID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptRepo) CorrectQuestionIDs(_ context.Context, userID, lessonID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	for _, a := range r.attempts {
		if a.UserID == userID && a.LessonID == lessonID && a.IsCorrect {
			seen[a.QuestionID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeAttemptRepo) ListForUser(_ context.Context, userID, questionID string, limit int) ([]*attempt.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*attempt.Attempt
	for i := len(r.attempts) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		a := r.attempts[i]
		if a.UserID == userID && a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reward repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeRewardRepo struct {
	mu           sync.Mutex
	transactions []*reward.XPTransaction
	profiles     map[string]*reward.Profile
	failAward    bool
}

func newFakeRewardRepo() *fakeRewardRepo {
	return &fakeRewardRepo{profiles: make(map[string]*reward.Profile)}
}

func (r *fakeRewardRepo) Award(_ context.Context, tx *reward.XPTransaction, table *reward.LevelTable) (reward.AwardResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAward {
		return reward.AwardResult{}, shared.ErrLedgerWriteFault
	}

	stored := *tx
	stored.ID = fmt.Sprintf("tx-%d", len(r.transactions)+1)
	tx.ID = stored.ID
	r.transactions = append(r.transactions, &stored)

	p, ok := r.profiles[tx.UserID]
	if !ok {
		p = &reward.Profile{UserID: tx.UserID, CurrentLevel: 1}
		r.profiles[tx.UserID] = p
	}
	oldLevel := p.CurrentLevel
	p.TotalXP += tx.Amount
	newLevel := table.LevelFor(p.TotalXP).Number
	if newLevel > p.CurrentLevel {
		p.CurrentLevel = newLevel
	}
	return reward.AwardResult{NewTotal: p.TotalXP, OldLevel: oldLevel, NewLevel: p.CurrentLevel}, nil
}

func (r *fakeRewardRepo) GetProfile(_ context.Context, userID string) (*reward.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRewardRepo) ListTransactions(_ context.Context, userID string, limit, offset int) ([]*reward.XPTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reward.XPTransaction
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].UserID == userID {
			out = append(out, r.transactions[i])
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

func (r *fakeRewardRepo) SumLedger(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (r *fakeRewardRepo) Reconcile(_ context.Context, table *reward.LevelTable) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	repaired := 0
	for userID, p := range r.profiles {
		sum := 0
		for _, tx := range r.transactions {
			if tx.UserID == userID {
				sum += tx.Amount
			}
		}
		if p.TotalXP != sum {
			p.TotalXP = sum
			if lvl := table.LevelFor(sum).Number; lvl > p.CurrentLevel {
				p.CurrentLevel = lvl
			}
			repaired++
		}
	}
	return repaired, nil
}

func (r *fakeRewardRepo) LoadLevels(_ context.Context) ([]reward.Level, error) {
	return reward.DefaultLevels, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Streak repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeStreakRepo struct {
	mu      sync.Mutex
	streaks map[string]*streak.Streak
}

func newFakeStreakRepo() *fakeStreakRepo {
	return &fakeStreakRepo{streaks: make(map[string]*streak.Streak)}
}

func (r *fakeStreakRepo) Get(_ context.Context, userID string) (*streak.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streaks[userID]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeStreakRepo) Touch(_ context.Context, userID string, now time.Time) (*streak.Streak, streak.TouchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streaks[userID]
	if !ok {
		s = &streak.Streak{UserID: userID}
		r.streaks[userID] = s
	}
	res := s.Touch(now)
	copied := *s
	return &copied, res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lesson repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeLessonRepo struct {
	mu       sync.Mutex
	progress map[string]*lesson.Progress
}

func newFakeLessonRepo() *fakeLessonRepo {
	return &fakeLessonRepo{progress: make(map[string]*lesson.Progress)}
}

func progressKey(userID, lessonID string) string { return userID + "/" + lessonID }

func (r *fakeLessonRepo) GetProgress(_ context.Context, userID, lessonID string) (*lesson.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[progressKey(userID, lessonID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeLessonRepo) MarkViewed(_ context.Context, userID, lessonID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(userID, lessonID)
	p, ok := r.progress[key]
	if !ok {
		r.progress[key] = &lesson.Progress{
			UserID: userID, LessonID: lessonID,
			Status: lesson.StatusInProgress, LastViewedAt: now, UpdatedAt: now,
		}
		return nil
	}
	p.LastViewedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *fakeLessonRepo) MarkCompleted(_ context.Context, userID, lessonID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(userID, lessonID)
	p, ok := r.progress[key]
	if !ok {
		completedAt := now
		r.progress[key] = &lesson.Progress{
			UserID: userID, LessonID: lessonID,
			Status: lesson.StatusCompleted, CompletedAt: &completedAt,
			LastViewedAt: now, UpdatedAt: now,
		}
		return true, nil
	}
	if p.Status == lesson.StatusCompleted {
		return false, nil
	}
	completedAt := now
	p.Status = lesson.StatusCompleted
	p.CompletedAt = &completedAt
	p.UpdatedAt = now
	return true, nil
}

func (r *fakeLessonRepo) ListForUser(_ context.Context, userID string, limit int) ([]*lesson.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*lesson.Progress
	for _, p := range r.progress {
		if p.UserID == userID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastViewedAt.After(out[j].LastViewedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Event publisher and deferrer
// ─────────────────────────────────────────────────────────────────────────────

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

func (p *fakePublisher) published(eventType shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// syncDeferrer runs deferred work inline so tests can assert on its effect.
type syncDeferrer struct {
	names []string
	errs  []error
}

func (d *syncDeferrer) Defer(name string, fn func(ctx context.Context) error) {
	d.names = append(d.names, name)
	d.errs = append(d.errs, fn(context.Background()))
}

// dropDeferrer swallows deferred work, for tests that assert the request
// path alone.
type dropDeferrer struct {
	count int
}

func (d *dropDeferrer) Defer(string, func(ctx context.Context) error) { d.count++ }
