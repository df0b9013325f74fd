// Package question contains the question domain model and the answer
// grader. Grading is pure business logic - there are no external
// dependencies and no storage access in this package.
package question

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Type identifies the gradable shape of a question.
type Type string

const (
	// TypeSingleChoice - one option is correct, identified by option id.
	TypeSingleChoice Type = "single_choice"
	// TypeNumeric - a numeric value compared within a tolerance.
	TypeNumeric Type = "numeric"
	// TypeBoolean - a true/false question.
	TypeBoolean Type = "boolean"
	// TypeMultiSelect - a set of option indices, compared with set semantics.
	TypeMultiSelect Type = "multi_select"
)

// IsValid checks that the type is one of the gradable types.
func (t Type) IsValid() bool {
	switch t {
	case TypeSingleChoice, TypeNumeric, TypeBoolean, TypeMultiSelect:
		return true
	default:
		return false
	}
}

// ParseType normalizes a stored type string. The legacy content pipeline
// wrote "mcq" for single-choice questions; both spellings grade the same.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single_choice", "mcq":
		return TypeSingleChoice, nil
	case "numeric":
		return TypeNumeric, nil
	case "boolean":
		return TypeBoolean, nil
	case "multi_select":
		return TypeMultiSelect, nil
	default:
		return "", shared.ErrUnknownQuestionType
	}
}

// ToleranceType selects how numeric answers are compared.
type ToleranceType string

const (
	// ToleranceAbsolute - |submitted - correct| <= tolerance.
	ToleranceAbsolute ToleranceType = "absolute"
	// TolerancePercentage - |submitted - correct| / |correct| <= tolerance.
	TolerancePercentage ToleranceType = "percentage"
)

// DefaultTolerance is the default absolute tolerance for numeric grading.
// It is deliberately non-zero so floating-point noise in otherwise exact
// answers never produces a false negative.
const DefaultTolerance = 0.01

// ══════════════════════════════════════════════════════════════════════════════
// GRADING CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// GradingConfig holds per-question grading options, stored as JSONB
// alongside the question row.
type GradingConfig struct {
	// Tolerance for numeric comparison. Zero means "use DefaultTolerance".
	Tolerance float64 `json:"tolerance,omitempty"`

	// ToleranceType selects absolute or percentage comparison.
	ToleranceType ToleranceType `json:"toleranceType,omitempty"`

	// AllowPartialCredit enables the "partial" verdict for multi-select
	// answers that are a correct-but-incomplete subset.
	AllowPartialCredit bool `json:"allowPartialCredit,omitempty"`
}

// Normalized returns the config with defaults applied.
func (c GradingConfig) Normalized() GradingConfig {
	out := c
	if out.Tolerance <= 0 {
		out.Tolerance = DefaultTolerance
	}
	if out.ToleranceType == "" {
		out.ToleranceType = ToleranceAbsolute
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: QUESTION
// ══════════════════════════════════════════════════════════════════════════════

// Option is one selectable choice of a single-choice question.
type Option struct {
	// ID - unique option identifier.
	ID string

	// Text - displayed option text (presentation concern, opaque here).
	Text string

	// IsCorrect - whether this option is the correct one. Exactly one
	// option should carry the flag; authoring errors are caught by
	// ResolveCorrectOption.
	IsCorrect bool

	// OrderIndex - display order.
	OrderIndex int
}

// Question is a gradable unit inside a lesson. Questions are authored
// outside this system and are read-only to the engine.
type Question struct {
	// ID - unique question identifier (UUID in string form).
	ID string

	// LessonID - the lesson this question belongs to.
	LessonID string

	// Type - the gradable shape.
	Type Type

	// Prompt - the question text (opaque to the engine).
	Prompt string

	// Options - selectable choices (single-choice and multi-select only).
	Options []Option

	// CorrectAnswer - raw correct-answer specification as authored.
	// Decoded on demand via DecodeCorrect; single-choice questions may
	// instead flag the correct option in Options.
	CorrectAnswer json.RawMessage

	// Grading - per-question grading options.
	Grading GradingConfig

	// Points - point value of the question.
	Points int

	// IsRequired - whether the question counts toward lesson completion.
	IsRequired bool

	// OrderIndex - position within the lesson.
	OrderIndex int

	// CreatedAt - authoring timestamp.
	CreatedAt time.Time
}

// ResolveCorrectOption finds the option flagged correct. Grading fails
// closed: a single-choice question without a flagged option is ungradeable,
// never "correct".
func (q *Question) ResolveCorrectOption() (*Option, error) {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i], nil
		}
	}
	return nil, shared.ErrNoCorrectOption
}

// ResolveOption normalizes an option answer onto an option id. Legacy
// clients select by position; the options slice is ordered by OrderIndex,
// so the position maps straight into it. An out-of-range position is
// ungradeable.
func (q *Question) ResolveOption(a OptionAnswer) (OptionAnswer, error) {
	if a.OptionID != "" {
		return a, nil
	}
	if a.Index >= 0 && a.Index < len(q.Options) {
		return OptionAnswer{OptionID: q.Options[a.Index].ID}, nil
	}
	return OptionAnswer{}, shared.ErrUngradeablePayload
}

// ResolveCorrectAnswer produces the typed correct answer for grading.
// Single-choice questions resolve from the flagged option first and fall
// back to the stored correct_answer document (which may itself be a legacy
// positional shape); other types decode the stored document directly.
func (q *Question) ResolveCorrectAnswer() (Answer, error) {
	if q.Type == TypeSingleChoice {
		if opt, err := q.ResolveCorrectOption(); err == nil {
			return OptionAnswer{OptionID: opt.ID}, nil
		}
		if len(q.CorrectAnswer) == 0 {
			return nil, shared.ErrNoCorrectOption
		}
		decoded, err := DecodeCorrect(TypeSingleChoice, q.CorrectAnswer)
		if err != nil {
			return nil, err
		}
		resolved, err := q.ResolveOption(decoded.(OptionAnswer))
		if err != nil {
			return nil, shared.WrapError("question", "ResolveCorrectAnswer", shared.ErrInvalidState, "stored correct option is out of range", err)
		}
		return resolved, nil
	}
	return DecodeCorrect(q.Type, q.CorrectAnswer)
}
