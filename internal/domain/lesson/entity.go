// Package lesson contains per-user lesson progress. The interesting part is
// the completion latch: a lesson completes at most once per user, and the
// winner of a concurrent race is decided by the storage layer.
package lesson

import (
	"time"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the per-user lesson progress state.
type Status string

const (
	// StatusNotStarted - no recorded activity in the lesson.
	StatusNotStarted Status = "not_started"
	// StatusInProgress - at least one attempt, not yet complete.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - terminal. Once set, nothing moves it back.
	StatusCompleted Status = "completed"
)

// IsValid checks that the status is a known progress state.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// rank orders statuses for the forward-only transition rule.
func (s Status) rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving to the target status is allowed.
// Progress only moves forward; same-status writes are allowed (idempotent).
func (s Status) CanTransitionTo(target Status) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	return target.rank() >= s.rank()
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress is one user's state within one lesson.
type Progress struct {
	// UserID - progress owner.
	UserID string

	// LessonID - the lesson.
	LessonID string

	// Status - current progress state.
	Status Status

	// LastViewedAt - last activity in the lesson.
	LastViewedAt time.Time

	// CompletedAt - set exactly once, when the completion latch fires.
	CompletedAt *time.Time

	// UpdatedAt - last row update.
	UpdatedAt time.Time
}

// Transition moves progress to the target status, enforcing the
// forward-only rule. Returns ErrBackwardStatus on a backward move.
func (p *Progress) Transition(target Status, now time.Time) error {
	if !p.Status.CanTransitionTo(target) {
		return shared.ErrBackwardStatus
	}
	if target == StatusCompleted && p.Status != StatusCompleted {
		completedAt := now
		p.CompletedAt = &completedAt
	}
	p.Status = target
	p.LastViewedAt = now
	p.UpdatedAt = now
	return nil
}

// IsComplete reports whether the latch has fired.
func (p *Progress) IsComplete() bool {
	return p.Status == StatusCompleted
}

// AllAnswered reports whether every required question has a correct answer.
// requiredIDs comes from the question repository; correctIDs from the
// attempt history. A lesson with no required questions never auto-completes.
func AllAnswered(requiredIDs, correctIDs []string) bool {
	if len(requiredIDs) == 0 {
		return false
	}
	correct := make(map[string]struct{}, len(correctIDs))
	for _, id := range correctIDs {
		correct[id] = struct{}{}
	}
	for _, id := range requiredIDs {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}
