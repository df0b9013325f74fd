// Package streak contains the daily activity streak model. A streak counts
// consecutive UTC calendar days with at least one qualifying activity.
package streak

import (
	"time"

	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STREAK
// ══════════════════════════════════════════════════════════════════════════════

// Streak is the per-user daily streak state.
type Streak struct {
	// UserID - streak owner.
	UserID string

	// Current - consecutive active days ending at LastActivityDate.
	Current int

	// Longest - high-water mark of Current.
	Longest int

	// LastActivityDate - the UTC calendar day of the last qualifying
	// activity. Zero for a brand-new streak row.
	LastActivityDate time.Time

	// UpdatedAt - last row update.
	UpdatedAt time.Time
}

// Outcome classifies what a Touch did to the streak.
type Outcome string

const (
	// OutcomeUnchanged - repeat activity on the same calendar day.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeStarted - first ever activity, streak begins at 1.
	OutcomeStarted Outcome = "started"
	// OutcomeExtended - activity on the day after the last one.
	OutcomeExtended Outcome = "extended"
	// OutcomeReset - a gap of two or more days; streak restarts at 1.
	OutcomeReset Outcome = "reset"
)

// TouchResult reports the state transition a Touch produced.
type TouchResult struct {
	Outcome Outcome

	// PreviousStreak - Current before the touch. Meaningful for
	// OutcomeReset, where it is the streak that was lost.
	PreviousStreak int

	// DaysMissed - calendar days with no activity before a reset.
	DaysMissed int
}

// Touch applies one qualifying activity at the given instant. The decision
// runs on UTC calendar days, never on 24-hour windows:
//
//	same day    -> unchanged
//	next day    -> extended (Current+1)
//	2+ day gap  -> reset to 1
//
// Longest tracks the high-water mark. Touch never decreases Longest.
func (s *Streak) Touch(now time.Time) TouchResult {
	today := timeutil.DateOnly(now)

	if s.LastActivityDate.IsZero() {
		s.Current = 1
		s.Longest = max(s.Longest, 1)
		s.LastActivityDate = today
		s.UpdatedAt = now
		return TouchResult{Outcome: OutcomeStarted}
	}

	delta := timeutil.DaysBetween(s.LastActivityDate, today)
	switch {
	case delta <= 0:
		// Same day, or a clock running behind the stored date. Either way
		// the streak is already counted for today.
		return TouchResult{Outcome: OutcomeUnchanged}

	case delta == 1:
		s.Current++
		s.Longest = max(s.Longest, s.Current)
		s.LastActivityDate = today
		s.UpdatedAt = now
		return TouchResult{Outcome: OutcomeExtended}

	default:
		prev := s.Current
		s.Current = 1
		s.Longest = max(s.Longest, 1)
		s.LastActivityDate = today
		s.UpdatedAt = now
		return TouchResult{
			Outcome:        OutcomeReset,
			PreviousStreak: prev,
			DaysMissed:     delta - 1,
		}
	}
}

// IsActiveAsOf reports whether the streak is still alive at the given
// instant: the last activity was today or yesterday in UTC terms.
func (s *Streak) IsActiveAsOf(now time.Time) bool {
	if s.LastActivityDate.IsZero() || s.Current == 0 {
		return false
	}
	delta := timeutil.DaysBetween(s.LastActivityDate, timeutil.DateOnly(now))
	return delta >= 0 && delta <= 1
}

// Validate checks streak invariants.
func (s *Streak) Validate() error {
	if s.UserID == "" {
		return shared.NewDomainError("streak", "Validate", shared.ErrEmptyValue, "user id is required")
	}
	if s.Current < 0 || s.Longest < 0 {
		return shared.NewDomainError("streak", "Validate", shared.ErrNegativeValue, "streak counters cannot be negative")
	}
	if s.Longest < s.Current {
		return shared.NewDomainError("streak", "Validate", shared.ErrInvalidState, "longest streak below current streak")
	}
	return nil
}
