package reward

import (
	"sort"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL PROGRESSION
// Levels are data, not code: thresholds live in the levels table and are
// loaded once at startup. The defaults below seed an empty table.
// ══════════════════════════════════════════════════════════════════════════════

// Level is one row of the level table.
type Level struct {
	// Number - level number, starting at 1.
	Number int

	// XPRequired - cumulative XP needed to reach this level.
	XPRequired int

	// Title - display title for the level.
	Title string
}

// DefaultLevels seeds the level table on first migration.
var DefaultLevels = []Level{
	{Number: 1, XPRequired: 0, Title: "Beginner"},
	{Number: 2, XPRequired: 100, Title: "Learner"},
	{Number: 3, XPRequired: 250, Title: "Explorer"},
	{Number: 4, XPRequired: 500, Title: "Achiever"},
	{Number: 5, XPRequired: 1000, Title: "Scholar"},
	{Number: 6, XPRequired: 1750, Title: "Expert"},
	{Number: 7, XPRequired: 2750, Title: "Master"},
	{Number: 8, XPRequired: 4000, Title: "Champion"},
	{Number: 9, XPRequired: 5500, Title: "Legend"},
	{Number: 10, XPRequired: 7500, Title: "Grandmaster"},
}

// LevelTable answers level lookups for a loaded set of thresholds.
// Construct with NewLevelTable; the zero value is unusable.
type LevelTable struct {
	levels []Level // sorted ascending by XPRequired
}

// NewLevelTable builds a table from rows in any order.
// Returns ErrLevelTableEmpty when no rows are given.
func NewLevelTable(levels []Level) (*LevelTable, error) {
	if len(levels) == 0 {
		return nil, shared.ErrLevelTableEmpty
	}
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].XPRequired < sorted[j].XPRequired
	})
	return &LevelTable{levels: sorted}, nil
}

// LevelFor returns the highest level whose threshold the total meets.
// Totals below the lowest threshold map to the lowest level.
func (t *LevelTable) LevelFor(totalXP int) Level {
	current := t.levels[0]
	for _, lvl := range t.levels {
		if totalXP >= lvl.XPRequired {
			current = lvl
		} else {
			break
		}
	}
	return current
}

// Next returns the level after the given one, or false at the top.
func (t *LevelTable) Next(number int) (Level, bool) {
	for _, lvl := range t.levels {
		if lvl.Number > number {
			return lvl, true
		}
	}
	return Level{}, false
}

// Max returns the highest level in the table.
func (t *LevelTable) Max() Level {
	return t.levels[len(t.levels)-1]
}

// Progress describes where a total sits between two thresholds, for
// progress bars.
type Progress struct {
	Level         Level
	NextLevel     *Level
	XPIntoLevel   int
	XPForNext     int
	PercentToNext float64
}

// ProgressFor computes progress toward the next level. At the top level,
// NextLevel is nil and the percentage is 1.
func (t *LevelTable) ProgressFor(totalXP int) Progress {
	current := t.LevelFor(totalXP)
	next, ok := t.Next(current.Number)
	if !ok {
		return Progress{Level: current, XPIntoLevel: totalXP - current.XPRequired, PercentToNext: 1}
	}

	span := next.XPRequired - current.XPRequired
	into := totalXP - current.XPRequired
	pct := 0.0
	if span > 0 {
		pct = float64(into) / float64(span)
	}
	return Progress{
		Level:         current,
		NextLevel:     &next,
		XPIntoLevel:   into,
		XPForNext:     next.XPRequired - totalXP,
		PercentToNext: pct,
	}
}
