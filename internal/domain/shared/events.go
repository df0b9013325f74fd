// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are returned to callers in the submission
// result (the presentation layer drains them) and dispatched on the
// in-process bus for the deferred reward pipeline.
const (
	// Submission events
	EventAttemptRecorded EventType = "submission.attempt_recorded"

	// Reward events
	EventXPAwarded   EventType = "reward.xp_awarded"
	EventLevelUp     EventType = "reward.level_up"
	EventBadgeEarned EventType = "reward.badge_earned"

	// Lesson events
	EventLessonStarted   EventType = "lesson.started"
	EventLessonCompleted EventType = "lesson.completed"

	// Streak events
	EventStreakUpdated EventType = "streak.updated"
	EventStreakBroken  EventType = "streak.broken"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Submission Events
// ═══════════════════════════════════════════════════════════════════════════

// AttemptRecordedEvent is emitted when an answer attempt is durably stored.
type AttemptRecordedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	QuestionID    string `json:"question_id"`
	LessonID      string `json:"lesson_id"`
	AttemptNumber int    `json:"attempt_number"`
	IsCorrect     bool   `json:"is_correct"`
}

// Payload implements Event interface.
func (e AttemptRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"question_id":    e.QuestionID,
		"lesson_id":      e.LessonID,
		"attempt_number": e.AttemptNumber,
		"is_correct":     e.IsCorrect,
	}
}

// NewAttemptRecordedEvent creates a new AttemptRecordedEvent.
func NewAttemptRecordedEvent(userID, questionID, lessonID string, attemptNumber int, isCorrect bool) AttemptRecordedEvent {
	return AttemptRecordedEvent{
		BaseEvent:     NewBaseEvent(EventAttemptRecorded, userID),
		UserID:        userID,
		QuestionID:    questionID,
		LessonID:      lessonID,
		AttemptNumber: attemptNumber,
		IsCorrect:     isCorrect,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted when XP is appended to a user's ledger.
type XPAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Amount      int    `json:"amount"`
	NewTotal    int    `json:"new_total"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"amount":       e.Amount,
		"new_total":    e.NewTotal,
		"reason":       e.Reason,
		"reference_id": e.ReferenceID,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(userID string, amount, newTotal int, reason, referenceID string) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:   NewBaseEvent(EventXPAwarded, userID),
		UserID:      userID,
		Amount:      amount,
		NewTotal:    newTotal,
		Reason:      reason,
		ReferenceID: referenceID,
	}
}

// LevelUpEvent is emitted when an XP award pushes a user past a level
// threshold. OldLevel < NewLevel always holds; levels never move down.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// BadgeEarnedEvent is emitted when a badge is unlocked for a user.
type BadgeEarnedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	BadgeID   string `json:"badge_id"`
	BadgeCode string `json:"badge_code"`
	BonusXP   int    `json:"bonus_xp"`
}

// Payload implements Event interface.
func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"badge_id":   e.BadgeID,
		"badge_code": e.BadgeCode,
		"bonus_xp":   e.BonusXP,
	}
}

// NewBadgeEarnedEvent creates a new BadgeEarnedEvent.
func NewBadgeEarnedEvent(userID, badgeID, badgeCode string, bonusXP int) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: NewBaseEvent(EventBadgeEarned, userID),
		UserID:    userID,
		BadgeID:   badgeID,
		BadgeCode: badgeCode,
		BonusXP:   bonusXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonStartedEvent is emitted on the first attempt within a lesson.
type LessonStartedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
}

// Payload implements Event interface.
func (e LessonStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"lesson_id": e.LessonID,
	}
}

// NewLessonStartedEvent creates a new LessonStartedEvent.
func NewLessonStartedEvent(userID, lessonID string) LessonStartedEvent {
	return LessonStartedEvent{
		BaseEvent: NewBaseEvent(EventLessonStarted, userID),
		UserID:    userID,
		LessonID:  lessonID,
	}
}

// LessonCompletedEvent is emitted exactly once per (user, lesson), when the
// completion latch transitions. Losing racers never emit this event.
type LessonCompletedEvent struct {
	BaseEvent
	UserID   string    `json:"user_id"`
	LessonID string    `json:"lesson_id"`
	BonusXP  int       `json:"bonus_xp"`
	When     time.Time `json:"completed_at"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"lesson_id":    e.LessonID,
		"bonus_xp":     e.BonusXP,
		"completed_at": e.When.Format(time.RFC3339),
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID, lessonID string, bonusXP int, when time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, userID),
		UserID:    userID,
		LessonID:  lessonID,
		BonusXP:   bonusXP,
		When:      when,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted when a user's daily streak advances or
// starts. Same-day repeat activity does not emit this event.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, currentStreak, longestStreak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		UserID:        userID,
		CurrentStreak: currentStreak,
		LongestStreak: longestStreak,
	}
}

// StreakBrokenEvent is emitted when a gap of two or more days resets a
// streak that had reached at least two days.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		UserID:         userID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
