package question

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER PAYLOADS
// Submitted answers arrive as loose JSON shaped by convention in the old
// clients ({optionId}, bare numbers, numeric strings, {value}, index
// arrays). They are decoded into a tagged union at the service boundary so
// the grader only ever sees typed values.
// ══════════════════════════════════════════════════════════════════════════════

// Answer is the tagged union of typed answer payloads, keyed by question
// type. It covers both submitted and correct answers.
type Answer interface {
	answerKind() Type
}

// OptionAnswer is a single-choice selection. Current clients select by
// option id; legacy clients selected by position. Index is meaningful only
// while OptionID is empty, and is resolved to an option id against the
// question's options before grading.
type OptionAnswer struct {
	OptionID string
	Index    int
}

func (OptionAnswer) answerKind() Type { return TypeSingleChoice }

// NumericAnswer is a numeric value.
type NumericAnswer struct {
	Value float64
}

func (NumericAnswer) answerKind() Type { return TypeNumeric }

// BooleanAnswer is a true/false value.
type BooleanAnswer struct {
	Value bool
}

func (BooleanAnswer) answerKind() Type { return TypeBoolean }

// MultiSelectAnswer is a set of option indices. Duplicates collapse;
// order carries no meaning.
type MultiSelectAnswer struct {
	Indices []int
}

func (MultiSelectAnswer) answerKind() Type { return TypeMultiSelect }

// IndexSet returns the indices as a deduplicated set.
func (a MultiSelectAnswer) IndexSet() map[int]struct{} {
	set := make(map[int]struct{}, len(a.Indices))
	for _, idx := range a.Indices {
		set[idx] = struct{}{}
	}
	return set
}

// SortedIndices returns the deduplicated indices in ascending order.
func (a MultiSelectAnswer) SortedIndices() []int {
	set := a.IndexSet()
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING
// ══════════════════════════════════════════════════════════════════════════════

// DecodeSubmitted parses a submitted payload for the given question type.
// Decoding is permissive about legacy shapes but strict about meaning:
// anything that cannot be interpreted returns ErrUngradeablePayload, which
// the grader reports as an ungradeable verdict rather than a hard failure.
func DecodeSubmitted(qt Type, raw json.RawMessage) (Answer, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, shared.ErrMissingAnswerPayload
	}

	switch qt {
	case TypeSingleChoice:
		return decodeOption(raw)
	case TypeNumeric:
		return decodeNumeric(raw)
	case TypeBoolean:
		return decodeBoolean(raw)
	case TypeMultiSelect:
		return decodeMultiSelect(raw)
	default:
		return nil, shared.ErrUnknownQuestionType
	}
}

// DecodeCorrect parses a stored correct-answer document. Correct answers
// use the same shapes as submissions.
func DecodeCorrect(qt Type, raw json.RawMessage) (Answer, error) {
	ans, err := DecodeSubmitted(qt, raw)
	if err != nil {
		return nil, shared.WrapError("question", "DecodeCorrect", shared.ErrInvalidState, "stored correct answer is malformed", err)
	}
	return ans, nil
}

func decodeOption(raw json.RawMessage) (Answer, error) {
	var aux struct {
		OptionID       string `json:"option_id"`
		LegacyOptionID string `json:"optionId"`
	}
	if err := json.Unmarshal(raw, &aux); err == nil {
		if aux.OptionID != "" {
			return OptionAnswer{OptionID: aux.OptionID}, nil
		}
		if aux.LegacyOptionID != "" {
			return OptionAnswer{OptionID: aux.LegacyOptionID}, nil
		}
	}

	// Legacy positional shapes: a bare index or {index}.
	var idx int
	if err := json.Unmarshal(raw, &idx); err == nil && idx >= 0 {
		return OptionAnswer{Index: idx}, nil
	}
	var wrapped struct {
		Index *int `json:"index"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Index != nil && *wrapped.Index >= 0 {
		return OptionAnswer{Index: *wrapped.Index}, nil
	}

	return nil, shared.ErrUngradeablePayload
}

func decodeNumeric(raw json.RawMessage) (Answer, error) {
	// Bare number
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return NumericAnswer{Value: num}, nil
	}

	// Numeric string, possibly with thousands separators
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, ok := parseNumericString(str); ok {
			return NumericAnswer{Value: v}, nil
		}
		return nil, shared.ErrUngradeablePayload
	}

	// Wrapped {value: <number|string>}
	var aux struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &aux); err == nil && len(aux.Value) > 0 {
		return decodeNumeric(aux.Value)
	}

	return nil, shared.ErrUngradeablePayload
}

func parseNumericString(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func decodeBoolean(raw json.RawMessage) (Answer, error) {
	// Bare boolean
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return BooleanAnswer{Value: b}, nil
	}

	// Wrapped {value: bool}
	var aux struct {
		Value *bool `json:"value"`
	}
	if err := json.Unmarshal(raw, &aux); err == nil && aux.Value != nil {
		return BooleanAnswer{Value: *aux.Value}, nil
	}

	return nil, shared.ErrUngradeablePayload
}

func decodeMultiSelect(raw json.RawMessage) (Answer, error) {
	// Bare index array
	var indices []int
	if err := json.Unmarshal(raw, &indices); err == nil {
		return MultiSelectAnswer{Indices: indices}, nil
	}

	// Wrapped {indices: [...]}
	var aux struct {
		Indices []int `json:"indices"`
	}
	if err := json.Unmarshal(raw, &aux); err == nil && aux.Indices != nil {
		return MultiSelectAnswer{Indices: aux.Indices}, nil
	}

	return nil, shared.ErrUngradeablePayload
}
