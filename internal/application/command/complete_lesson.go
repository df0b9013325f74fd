package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/attempt"
	"github.com/lernhub/progress-engine/internal/domain/lesson"
	"github.com/lernhub/progress-engine/internal/domain/question"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/domain/streak"
	"github.com/lernhub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// Checks whether every required question has a correct answer and, if so,
// fires the completion latch. The latch is a conditional storage write, so
// two racing checks cannot both award the completion bonus: exactly one
// caller observes the transition. Completing a lesson is also the qualifying
// activity for the daily streak, so the streak touch lives on the winning
// branch of the latch.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand contains the data for a completion check.
type CompleteLessonCommand struct {
	// UserID is the user whose progress is checked.
	UserID string

	// LessonID is the lesson to check.
	LessonID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("complete_lesson: user_id is required")
	}
	if c.LessonID == "" {
		return errors.New("complete_lesson: lesson_id is required")
	}
	return nil
}

// CompleteLessonResult contains the result of a completion check.
type CompleteLessonResult struct {
	// AllAnswered reports whether every required question has a correct
	// answer.
	AllAnswered bool

	// JustCompleted is true only for the caller that won the latch
	// transition. An already-complete lesson (or a lost race) yields
	// AllAnswered=true, JustCompleted=false.
	JustCompleted bool

	// BonusXP is the completion bonus credited, zero unless JustCompleted.
	BonusXP int

	// NewTotal is the user's total XP after the bonus, zero unless
	// JustCompleted.
	NewTotal int

	// StreakDays is the current daily streak after the completion touched
	// it, zero unless JustCompleted.
	StreakDays int

	// Events contains domain events generated.
	Events []shared.Event

	// CheckedAt is when the check ran.
	CheckedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonHandler handles the CompleteLessonCommand.
type CompleteLessonHandler struct {
	questionRepo   question.Repository
	attemptRepo    attempt.Repository
	streakRepo     streak.Repository
	lessonRepo     lesson.Repository
	awardXP        *AwardXPHandler
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler.
func NewCompleteLessonHandler(
	questionRepo question.Repository,
	attemptRepo attempt.Repository,
	streakRepo streak.Repository,
	lessonRepo lesson.Repository,
	awardXP *AwardXPHandler,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *CompleteLessonHandler {
	return &CompleteLessonHandler{
		questionRepo:   questionRepo,
		attemptRepo:    attemptRepo,
		streakRepo:     streakRepo,
		lessonRepo:     lessonRepo,
		awardXP:        awardXP,
		eventPublisher: eventPublisher,
		log:            log,
	}
}

// Handle executes the complete lesson command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_lesson: validation failed: %w", err)
	}

	now := time.Now().UTC()
	result := &CompleteLessonResult{
		Events:    make([]shared.Event, 0, 2),
		CheckedAt: now,
	}

	requiredIDs, err := h.questionRepo.ListRequiredIDsByLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: failed to load required questions: %w", err)
	}

	correctIDs, err := h.attemptRepo.CorrectQuestionIDs(ctx, cmd.UserID, cmd.LessonID)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: failed to load correct answers: %w", err)
	}

	if !lesson.AllAnswered(requiredIDs, correctIDs) {
		return result, nil
	}
	result.AllAnswered = true

	// Conditional write: only one caller per (user, lesson) ever sees
	// won=true, no matter how many concurrent checks run.
	won, err := h.lessonRepo.MarkCompleted(ctx, cmd.UserID, cmd.LessonID, now)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: latch write failed: %w", err)
	}
	if !won {
		return result, nil
	}
	result.JustCompleted = true
	result.BonusXP = reward.XPPerLessonComplete

	awarded, err := h.awardXP.Handle(ctx, AwardXPCommand{
		UserID:        cmd.UserID,
		Amount:        reward.XPPerLessonComplete,
		Reason:        reward.ReasonLessonComplete,
		ReferenceID:   cmd.LessonID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		// The latch already fired; surface the failed bonus instead of
		// pretending the lesson is incomplete. Reconciliation settles the
		// ledger later.
		return result, fmt.Errorf("complete_lesson: bonus award failed: %w", err)
	}
	result.NewTotal = awarded.NewTotal
	result.Events = append(result.Events, awarded.Events...)

	completedEvent := shared.NewLessonCompletedEvent(cmd.UserID, cmd.LessonID, reward.XPPerLessonComplete, now)
	if cmd.CorrelationID != "" {
		completedEvent.BaseEvent = completedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, completedEvent)
	_ = h.eventPublisher.Publish(completedEvent)

	h.touchStreak(ctx, cmd, result, now)

	return result, nil
}

// touchStreak applies the completion to the daily streak. Correct answers
// alone never advance the streak; finishing a lesson is the qualifying
// activity. Best effort: a streak fault does not undo the completion.
func (h *CompleteLessonHandler) touchStreak(ctx context.Context, cmd CompleteLessonCommand, result *CompleteLessonResult, now time.Time) {
	updated, touch, err := h.streakRepo.Touch(ctx, cmd.UserID, now)
	if err != nil {
		h.log.Warn("streak update failed",
			logger.UserID(cmd.UserID),
			logger.Err(err),
		)
		return
	}
	result.StreakDays = updated.Current

	switch touch.Outcome {
	case streak.OutcomeStarted, streak.OutcomeExtended, streak.OutcomeReset:
		if touch.Outcome == streak.OutcomeReset && touch.PreviousStreak >= 2 {
			brokenEvent := shared.NewStreakBrokenEvent(cmd.UserID, touch.PreviousStreak, touch.DaysMissed)
			if cmd.CorrelationID != "" {
				brokenEvent.BaseEvent = brokenEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
			}
			result.Events = append(result.Events, brokenEvent)
			_ = h.eventPublisher.Publish(brokenEvent)
		}

		updatedEvent := shared.NewStreakUpdatedEvent(cmd.UserID, updated.Current, updated.Longest)
		if cmd.CorrelationID != "" {
			updatedEvent.BaseEvent = updatedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, updatedEvent)
		_ = h.eventPublisher.Publish(updatedEvent)
	}
}
