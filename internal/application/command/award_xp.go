// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Appends one transaction to the XP ledger and bumps the cached profile
// total atomically. Level-ups fall out of the same write.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand contains the data for one ledger credit.
type AwardXPCommand struct {
	// UserID is the credited user.
	UserID string

	// Amount is the XP to credit. Must be positive.
	Amount int

	// Reason classifies the credit.
	Reason reward.Reason

	// ReferenceID is the triggering entity (question, lesson, badge).
	ReferenceID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("award_xp: user_id is required")
	}
	if c.Amount <= 0 {
		return fmt.Errorf("award_xp: amount must be positive, got %d", c.Amount)
	}
	if !c.Reason.IsValid() {
		return fmt.Errorf("award_xp: invalid reason: %s", c.Reason)
	}
	return nil
}

// AwardXPResult contains the result of a ledger credit.
type AwardXPResult struct {
	// TransactionID is the appended ledger row.
	TransactionID string

	// NewTotal is the user's total XP after the credit.
	NewTotal int

	// OldLevel and NewLevel bracket the credit. NewLevel > OldLevel means
	// the credit crossed a threshold.
	OldLevel int
	NewLevel int

	// Events contains domain events generated.
	Events []shared.Event

	// CreatedAt is when the credit landed.
	CreatedAt time.Time
}

// LeveledUp reports whether the credit crossed a level threshold.
func (r *AwardXPResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPHandler handles the AwardXPCommand.
type AwardXPHandler struct {
	rewardRepo     reward.Repository
	levels         *reward.LevelTable
	eventPublisher shared.EventPublisher
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(
	rewardRepo reward.Repository,
	levels *reward.LevelTable,
	eventPublisher shared.EventPublisher,
) *AwardXPHandler {
	return &AwardXPHandler{
		rewardRepo:     rewardRepo,
		levels:         levels,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the award XP command.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_xp: validation failed: %w", err)
	}

	now := time.Now().UTC()
	tx := &reward.XPTransaction{
		UserID:      cmd.UserID,
		Amount:      cmd.Amount,
		Reason:      cmd.Reason,
		ReferenceID: cmd.ReferenceID,
		CreatedAt:   now,
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("award_xp: invalid transaction: %w", err)
	}

	awarded, err := h.rewardRepo.Award(ctx, tx, h.levels)
	if err != nil {
		return nil, fmt.Errorf("award_xp: ledger append failed: %w", err)
	}

	result := &AwardXPResult{
		TransactionID: tx.ID,
		NewTotal:      awarded.NewTotal,
		OldLevel:      awarded.OldLevel,
		NewLevel:      awarded.NewLevel,
		Events:        make([]shared.Event, 0, 2),
		CreatedAt:     now,
	}

	xpEvent := shared.NewXPAwardedEvent(cmd.UserID, cmd.Amount, awarded.NewTotal, string(cmd.Reason), cmd.ReferenceID)
	if cmd.CorrelationID != "" {
		xpEvent.BaseEvent = xpEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, xpEvent)
	_ = h.eventPublisher.Publish(xpEvent)

	if awarded.LeveledUp() {
		levelEvent := shared.NewLevelUpEvent(cmd.UserID, awarded.OldLevel, awarded.NewLevel, awarded.NewTotal)
		if cmd.CorrelationID != "" {
			levelEvent.BaseEvent = levelEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, levelEvent)
		_ = h.eventPublisher.Publish(levelEvent)
	}

	return result, nil
}
