package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/attempt"
	"github.com/lernhub/progress-engine/internal/domain/lesson"
	"github.com/lernhub/progress-engine/internal/domain/question"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER COMMAND
// The submission pipeline: grade, record the attempt, and hand out rewards.
// Grading always answers; persistence failures degrade to feedback-only.
// The lesson completion check runs off the request path.
// ══════════════════════════════════════════════════════════════════════════════

// Deferrer schedules work to run after the submission response is sent.
// Deferred work must not die with the request context; the runner detaches
// it and retries transient failures.
type Deferrer interface {
	Defer(name string, fn func(ctx context.Context) error)
}

// SubmitAnswerCommand contains one answer submission.
type SubmitAnswerCommand struct {
	// UserID is the submitting user. Empty means guest mode: the answer
	// is graded but nothing is persisted and no rewards are given.
	UserID string

	// QuestionID is the answered question.
	QuestionID string

	// Answer is the raw submitted payload, decoded per question type.
	Answer json.RawMessage

	// AttemptNumber is the client's 1-based attempt ordinal. Zero asks the
	// server to derive it from the attempt history.
	AttemptNumber int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitAnswerCommand) Validate() error {
	if c.QuestionID == "" {
		return errors.New("submit_answer: question_id is required")
	}
	if c.AttemptNumber < 0 {
		return fmt.Errorf("submit_answer: attempt_number cannot be negative, got %d", c.AttemptNumber)
	}
	return nil
}

// IsGuest reports whether the submission runs in guest mode.
func (c SubmitAnswerCommand) IsGuest() bool {
	return c.UserID == ""
}

// SubmitAnswerResult contains the graded outcome and any rewards.
type SubmitAnswerResult struct {
	// IsCorrect is the grading outcome.
	IsCorrect bool

	// Verdict is the grading verdict.
	Verdict question.Verdict

	// Feedback is the user-facing grading message.
	Feedback string

	// AttemptFeedback is the attempt-aware encouragement line.
	AttemptFeedback string

	// AttemptNumber is the ordinal this submission was recorded under.
	AttemptNumber int

	// Guest is true when nothing was persisted.
	Guest bool

	// RewardsSkipped is true when the attempt could not be stored and the
	// reward pipeline was therefore skipped.
	RewardsSkipped bool

	// XPAwarded is the XP credited for this submission.
	XPAwarded int

	// NewTotal is the user's total XP after the credit.
	NewTotal int

	// OldLevel and NewLevel bracket the credit.
	OldLevel int
	NewLevel int

	// Events contains domain events generated.
	Events []shared.Event

	// SubmittedAt is when the submission was processed.
	SubmittedAt time.Time
}

// LeveledUp reports whether this submission crossed a level threshold.
func (r *SubmitAnswerResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswerHandler handles the SubmitAnswerCommand.
type SubmitAnswerHandler struct {
	questionRepo   question.Repository
	attemptRepo    attempt.Repository
	lessonRepo     lesson.Repository
	awardXP        *AwardXPHandler
	completeLesson *CompleteLessonHandler
	deferrer       Deferrer
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewSubmitAnswerHandler creates a new SubmitAnswerHandler.
func NewSubmitAnswerHandler(
	questionRepo question.Repository,
	attemptRepo attempt.Repository,
	lessonRepo lesson.Repository,
	awardXP *AwardXPHandler,
	completeLesson *CompleteLessonHandler,
	deferrer Deferrer,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *SubmitAnswerHandler {
	return &SubmitAnswerHandler{
		questionRepo:   questionRepo,
		attemptRepo:    attemptRepo,
		lessonRepo:     lessonRepo,
		awardXP:        awardXP,
		completeLesson: completeLesson,
		deferrer:       deferrer,
		eventPublisher: eventPublisher,
		log:            log,
	}
}

// Handle executes the submit answer command.
func (h *SubmitAnswerHandler) Handle(ctx context.Context, cmd SubmitAnswerCommand) (*SubmitAnswerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_answer: validation failed: %w", err)
	}

	q, err := h.questionRepo.GetByID(ctx, cmd.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("submit_answer: question lookup failed: %w", err)
	}

	now := time.Now().UTC()
	result := &SubmitAnswerResult{
		Guest:       cmd.IsGuest(),
		Events:      make([]shared.Event, 0, 4),
		SubmittedAt: now,
	}

	graded := h.grade(q, cmd.Answer)
	result.IsCorrect = graded.IsCorrect
	result.Verdict = graded.Verdict
	result.Feedback = graded.Feedback

	// Guest mode: grade and answer, persist nothing, reward nothing.
	if cmd.IsGuest() {
		result.AttemptNumber = normalizeOrdinal(cmd.AttemptNumber)
		result.AttemptFeedback = question.AttemptFeedback(result.AttemptNumber, graded.IsCorrect)
		return result, nil
	}

	result.AttemptNumber = h.resolveOrdinal(ctx, cmd)
	result.AttemptFeedback = question.AttemptFeedback(result.AttemptNumber, graded.IsCorrect)

	// Record the attempt. The grade already happened; a storage fault here
	// degrades to feedback-only rather than failing the submission, but it
	// gates every reward below (no unrecorded attempt may earn XP).
	att := &attempt.Attempt{
		UserID:     cmd.UserID,
		QuestionID: cmd.QuestionID,
		LessonID:   q.LessonID,
		Ordinal:    result.AttemptNumber,
		Submitted:  cmd.Answer,
		IsCorrect:  graded.IsCorrect,
		Verdict:    string(graded.Verdict),
		CreatedAt:  now,
	}
	if err := att.Validate(); err != nil {
		return nil, fmt.Errorf("submit_answer: invalid attempt: %w", err)
	}
	if err := h.attemptRepo.Record(ctx, att); err != nil {
		h.log.Error("attempt record failed, skipping rewards",
			logger.UserID(cmd.UserID),
			logger.QuestionID(cmd.QuestionID),
			logger.Err(err),
		)
		result.RewardsSkipped = true
		return result, nil
	}

	attemptEvent := shared.NewAttemptRecordedEvent(cmd.UserID, cmd.QuestionID, q.LessonID, result.AttemptNumber, graded.IsCorrect)
	if cmd.CorrelationID != "" {
		attemptEvent.BaseEvent = attemptEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, attemptEvent)
	_ = h.eventPublisher.Publish(attemptEvent)

	h.markLessonActivity(ctx, cmd, q.LessonID, result, now)

	if !graded.IsCorrect {
		return result, nil
	}

	h.awardCorrectAnswer(ctx, cmd, result)
	h.deferCompletionCheck(cmd, q.LessonID)

	return result, nil
}

// grade decodes both sides and runs the pure grader. Decoding faults grade
// as ungradeable; they are a user-input problem, not a server error.
func (h *SubmitAnswerHandler) grade(q *question.Question, raw json.RawMessage) question.Result {
	submitted, err := question.DecodeSubmitted(q.Type, raw)
	if err != nil {
		if errors.Is(err, shared.ErrEmptyValue) {
			return question.Ungradeable("Please provide an answer.")
		}
		return question.Ungradeable("Your answer could not be understood. Please try again.")
	}
	if opt, ok := submitted.(question.OptionAnswer); ok {
		resolved, err := q.ResolveOption(opt)
		if err != nil {
			return question.Ungradeable("Your answer could not be understood. Please try again.")
		}
		submitted = resolved
	}

	correct, err := q.ResolveCorrectAnswer()
	if err != nil {
		h.log.Error("question has no gradable correct answer",
			logger.QuestionID(q.ID),
			logger.Err(err),
		)
		return question.Ungradeable("This question cannot be graded right now.")
	}

	return question.Grade(q.Type, submitted, correct, q.Grading)
}

// resolveOrdinal trusts a positive client ordinal and derives the ordinal
// from history otherwise. A count failure falls back to 1; the ordinal only
// feeds feedback, never grading.
func (h *SubmitAnswerHandler) resolveOrdinal(ctx context.Context, cmd SubmitAnswerCommand) int {
	if cmd.AttemptNumber > 0 {
		return cmd.AttemptNumber
	}
	count, err := h.attemptRepo.CountForQuestion(ctx, cmd.UserID, cmd.QuestionID)
	if err != nil {
		h.log.Warn("attempt count failed, assuming first attempt",
			logger.UserID(cmd.UserID),
			logger.QuestionID(cmd.QuestionID),
			logger.Err(err),
		)
		return 1
	}
	return count + 1
}

// markLessonActivity keeps lesson progress warm. Best effort: a failure is
// logged and the submission continues.
func (h *SubmitAnswerHandler) markLessonActivity(ctx context.Context, cmd SubmitAnswerCommand, lessonID string, result *SubmitAnswerResult, now time.Time) {
	_, err := h.lessonRepo.GetProgress(ctx, cmd.UserID, lessonID)
	firstActivity := shared.IsNotFound(err)

	if err := h.lessonRepo.MarkViewed(ctx, cmd.UserID, lessonID, now); err != nil {
		h.log.Warn("lesson progress update failed",
			logger.UserID(cmd.UserID),
			logger.LessonID(lessonID),
			logger.Err(err),
		)
		return
	}

	if firstActivity {
		startedEvent := shared.NewLessonStartedEvent(cmd.UserID, lessonID)
		if cmd.CorrelationID != "" {
			startedEvent.BaseEvent = startedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, startedEvent)
		_ = h.eventPublisher.Publish(startedEvent)
	}
}

// awardCorrectAnswer credits the flat per-answer XP. Best effort: the user
// keeps their feedback even when the ledger is down.
func (h *SubmitAnswerHandler) awardCorrectAnswer(ctx context.Context, cmd SubmitAnswerCommand, result *SubmitAnswerResult) {
	awarded, err := h.awardXP.Handle(ctx, AwardXPCommand{
		UserID:        cmd.UserID,
		Amount:        reward.XPPerCorrectAnswer,
		Reason:        reward.ReasonCorrectAnswer,
		ReferenceID:   cmd.QuestionID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		h.log.Error("xp award failed",
			logger.UserID(cmd.UserID),
			logger.QuestionID(cmd.QuestionID),
			logger.Err(err),
		)
		return
	}

	result.XPAwarded = reward.XPPerCorrectAnswer
	result.NewTotal = awarded.NewTotal
	result.OldLevel = awarded.OldLevel
	result.NewLevel = awarded.NewLevel
	result.Events = append(result.Events, awarded.Events...)
}

// deferCompletionCheck schedules the lesson completion check off the
// request path. The runner detaches the context and retries transient
// failures; a lost check is settled by the next correct answer in the
// lesson. The streak touch rides on the completion check, never on the
// individual answer.
func (h *SubmitAnswerHandler) deferCompletionCheck(cmd SubmitAnswerCommand, lessonID string) {
	userID := cmd.UserID
	correlationID := cmd.CorrelationID
	h.deferrer.Defer("lesson-completion-check", func(ctx context.Context) error {
		_, err := h.completeLesson.Handle(ctx, CompleteLessonCommand{
			UserID:        userID,
			LessonID:      lessonID,
			CorrelationID: correlationID,
		})
		return err
	})
}

func normalizeOrdinal(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
