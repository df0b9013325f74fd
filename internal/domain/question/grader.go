package question

import (
	"fmt"
	"math"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER GRADER
// Pure, deterministic grading: no storage access, no clock, no randomness.
// Calling Grade twice with identical inputs yields identical output.
// ══════════════════════════════════════════════════════════════════════════════

// Verdict is the feedback category callers rely on. The feedback string is
// a presentation concern; the verdict is the contract.
type Verdict string

const (
	// VerdictCorrect - the answer matches.
	VerdictCorrect Verdict = "correct"
	// VerdictIncorrect - the answer does not match.
	VerdictIncorrect Verdict = "incorrect"
	// VerdictPartial - multi-select subset with no wrong picks; still not
	// correct, but distinguished for the caller.
	VerdictPartial Verdict = "partial"
	// VerdictUngradeable - the submission (or the question configuration)
	// could not be interpreted. Treated as not-correct, never as an error.
	VerdictUngradeable Verdict = "ungradeable"
)

// Result is the outcome of grading one submission.
type Result struct {
	IsCorrect bool
	Verdict   Verdict
	Feedback  string
}

// Ungradeable builds a not-correct result with the ungradeable verdict.
func Ungradeable(feedback string) Result {
	return Result{IsCorrect: false, Verdict: VerdictUngradeable, Feedback: feedback}
}

// Grade grades a typed submission against a typed correct answer.
// The answer types must match the question type; mismatches grade as
// ungradeable (fail closed).
func Grade(qt Type, submitted, correct Answer, cfg GradingConfig) Result {
	if submitted == nil || correct == nil {
		return Ungradeable("This question cannot be graded right now.")
	}

	switch qt {
	case TypeSingleChoice:
		return gradeSingleChoice(submitted, correct)
	case TypeNumeric:
		return gradeNumeric(submitted, correct, cfg.Normalized())
	case TypeBoolean:
		return gradeBoolean(submitted, correct)
	case TypeMultiSelect:
		return gradeMultiSelect(submitted, correct, cfg)
	default:
		return Ungradeable("Unknown question type.")
	}
}

func gradeSingleChoice(submitted, correct Answer) Result {
	sub, ok := submitted.(OptionAnswer)
	if !ok {
		return Ungradeable("Please select an answer.")
	}
	cor, ok := correct.(OptionAnswer)
	if !ok || cor.OptionID == "" {
		return Ungradeable("This question cannot be graded right now.")
	}

	if sub.OptionID == cor.OptionID {
		return Result{IsCorrect: true, Verdict: VerdictCorrect, Feedback: "Correct! Well done!"}
	}
	return Result{IsCorrect: false, Verdict: VerdictIncorrect, Feedback: "Incorrect. Please review the question and try again."}
}

func gradeNumeric(submitted, correct Answer, cfg GradingConfig) Result {
	sub, ok := submitted.(NumericAnswer)
	if !ok {
		return Ungradeable("Please enter a valid number.")
	}
	cor, ok := correct.(NumericAnswer)
	if !ok {
		return Ungradeable("This question cannot be graded right now.")
	}

	diff := math.Abs(sub.Value - cor.Value)

	var isCorrect bool
	if cfg.ToleranceType == TolerancePercentage && cor.Value != 0 {
		isCorrect = diff/math.Abs(cor.Value) <= cfg.Tolerance
	} else {
		// Absolute comparison; also the fallback when the correct value is
		// zero and a percentage tolerance would divide by zero.
		isCorrect = diff <= cfg.Tolerance
	}

	if isCorrect {
		return Result{IsCorrect: true, Verdict: VerdictCorrect, Feedback: "Correct!"}
	}
	return Result{IsCorrect: false, Verdict: VerdictIncorrect, Feedback: "Not quite. Remember, small rounding differences are okay."}
}

func gradeBoolean(submitted, correct Answer) Result {
	sub, ok := submitted.(BooleanAnswer)
	if !ok {
		return Ungradeable("Please select True or False.")
	}
	cor, ok := correct.(BooleanAnswer)
	if !ok {
		return Ungradeable("This question cannot be graded right now.")
	}

	if sub.Value == cor.Value {
		return Result{IsCorrect: true, Verdict: VerdictCorrect, Feedback: "Correct!"}
	}
	return Result{IsCorrect: false, Verdict: VerdictIncorrect, Feedback: "That's not the right answer. Think it through again!"}
}

func gradeMultiSelect(submitted, correct Answer, cfg GradingConfig) Result {
	sub, ok := submitted.(MultiSelectAnswer)
	if !ok {
		return Ungradeable("Please select at least one answer.")
	}
	cor, ok := correct.(MultiSelectAnswer)
	if !ok || len(cor.Indices) == 0 {
		return Ungradeable("This question cannot be graded right now.")
	}

	subSet := sub.IndexSet()
	corSet := cor.IndexSet()

	if len(subSet) == 0 {
		return Ungradeable("Please select at least one answer.")
	}

	correctPicks := 0
	wrongPicks := 0
	for idx := range subSet {
		if _, found := corSet[idx]; found {
			correctPicks++
		} else {
			wrongPicks++
		}
	}
	missed := len(corSet) - correctPicks

	if wrongPicks == 0 && missed == 0 {
		return Result{IsCorrect: true, Verdict: VerdictCorrect, Feedback: "Correct! You selected all the right answers."}
	}

	if cfg.AllowPartialCredit && wrongPicks == 0 && correctPicks > 0 {
		return Result{
			IsCorrect: false,
			Verdict:   VerdictPartial,
			Feedback:  fmt.Sprintf("You got %d correct, but you're missing %d more.", correctPicks, missed),
		}
	}

	return Result{IsCorrect: false, Verdict: VerdictIncorrect, Feedback: "Not all selections are correct. Review your choices and try again!"}
}

// AttemptFeedback decorates a correct verdict with attempt-aware messaging.
// First-try answers get a distinct message on the profile screen.
func AttemptFeedback(attemptNumber int, isCorrect bool) string {
	if !isCorrect {
		return "Try again! You can do this."
	}
	switch {
	case attemptNumber <= 1:
		return "Perfect! You got it on your first try!"
	case attemptNumber == 2:
		return "Well done! You figured it out!"
	default:
		return "Correct! Great persistence!"
	}
}
