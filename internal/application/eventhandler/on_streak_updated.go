package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lernhub/progress-engine/internal/application/command"
	"github.com/lernhub/progress-engine/internal/domain/badge"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK UPDATED HANDLER
// Unlocks streak badges when the current streak reaches a badge milestone.
// ═══════════════════════════════════════════════════════════════════════════

// OnStreakUpdatedHandler reacts to streak advances with badge unlocks.
type OnStreakUpdatedHandler struct {
	badgeRepo badge.Repository
	awardXP   *command.AwardXPHandler
	logger    *slog.Logger
}

// NewOnStreakUpdatedHandler creates a new OnStreakUpdatedHandler.
func NewOnStreakUpdatedHandler(
	badgeRepo badge.Repository,
	awardXP *command.AwardXPHandler,
	logger *slog.Logger,
) *OnStreakUpdatedHandler {
	return &OnStreakUpdatedHandler{
		badgeRepo: badgeRepo,
		awardXP:   awardXP,
		logger:    logger.With(slog.String("handler", "on_streak_updated")),
	}
}

// Handle processes a StreakUpdatedEvent.
func (h *OnStreakUpdatedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.StreakUpdatedEvent)
	if !ok {
		return fmt.Errorf("on_streak_updated: unexpected event type %s", event.EventType())
	}

	ctx := context.Background()
	candidates, err := h.badgeRepo.ListByCategory(ctx, badge.CategoryStreak)
	if err != nil {
		return fmt.Errorf("on_streak_updated: catalog read failed: %w", err)
	}

	for _, b := range candidates {
		if e.CurrentStreak < b.StreakRequired {
			continue
		}
		if err := grantBadge(ctx, h.badgeRepo, h.awardXP, e.UserID, b, h.logger); err != nil {
			return err
		}
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
