// Package badge contains the badge catalog and per-user unlocks. Badges are
// unlocked by event handlers reacting to level-up and streak events; unlocks
// are idempotent at the storage layer.
package badge

import (
	"time"

	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Category groups badges by how they are earned.
type Category string

const (
	// CategoryAchievement - earned by reaching an XP or level milestone.
	CategoryAchievement Category = "achievement"
	// CategoryStreak - earned by a streak milestone.
	CategoryStreak Category = "streak"
	// CategoryMastery - earned by completing lessons.
	CategoryMastery Category = "mastery"
	// CategorySpecial - granted manually or by campaigns.
	CategorySpecial Category = "special"
)

// IsValid checks that the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAchievement, CategoryStreak, CategoryMastery, CategorySpecial:
		return true
	default:
		return false
	}
}

// Rarity is the display tier of a badge.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid checks that the rarity is known.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Badge is one catalog entry.
type Badge struct {
	// ID - unique badge identifier (UUID in string form).
	ID string

	// Code - stable machine-readable code, e.g. "streak_7".
	Code string

	// Name - display name.
	Name string

	// Description - display description.
	Description string

	// Category - how the badge is earned.
	Category Category

	// Rarity - display tier.
	Rarity Rarity

	// XPRequired - total-XP threshold for achievement badges. Zero for
	// other categories.
	XPRequired int

	// StreakRequired - streak-length threshold for streak badges. Zero
	// for other categories.
	StreakRequired int

	// BonusXP - XP credited to the ledger when the badge unlocks.
	BonusXP int

	// CreatedAt - catalog timestamp.
	CreatedAt time.Time
}

// Validate checks catalog invariants.
func (b *Badge) Validate() error {
	if b.Code == "" {
		return shared.NewDomainError("badge", "Validate", shared.ErrEmptyValue, "badge code is required")
	}
	if !b.Category.IsValid() {
		return shared.NewDomainError("badge", "Validate", shared.ErrInvalidInput, "unknown badge category")
	}
	if !b.Rarity.IsValid() {
		return shared.NewDomainError("badge", "Validate", shared.ErrInvalidInput, "unknown badge rarity")
	}
	if b.XPRequired < 0 || b.StreakRequired < 0 || b.BonusXP < 0 {
		return shared.NewDomainError("badge", "Validate", shared.ErrNegativeValue, "badge thresholds cannot be negative")
	}
	return nil
}

// UserBadge records one unlock.
type UserBadge struct {
	// UserID - the user who earned the badge.
	UserID string

	// BadgeID - the earned badge.
	BadgeID string

	// EarnedAt - unlock timestamp.
	EarnedAt time.Time
}

// DefaultBadges seeds the catalog on first migration.
var DefaultBadges = []Badge{
	{Code: "first_steps", Name: "First Steps", Description: "Earn your first XP", Category: CategoryAchievement, Rarity: RarityCommon, XPRequired: 1, BonusXP: 0},
	{Code: "level_5", Name: "Scholar", Description: "Reach level 5", Category: CategoryAchievement, Rarity: RarityRare, XPRequired: 1000, BonusXP: 25},
	{Code: "level_10", Name: "Grandmaster", Description: "Reach level 10", Category: CategoryAchievement, Rarity: RarityLegendary, XPRequired: 7500, BonusXP: 100},
	{Code: "streak_3", Name: "Warming Up", Description: "Keep a 3-day streak", Category: CategoryStreak, Rarity: RarityCommon, StreakRequired: 3, BonusXP: 10},
	{Code: "streak_7", Name: "On Fire", Description: "Keep a 7-day streak", Category: CategoryStreak, Rarity: RarityRare, StreakRequired: 7, BonusXP: 25},
	{Code: "streak_30", Name: "Unstoppable", Description: "Keep a 30-day streak", Category: CategoryStreak, Rarity: RarityEpic, StreakRequired: 30, BonusXP: 100},
}
