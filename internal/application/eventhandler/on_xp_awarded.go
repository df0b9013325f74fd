// Package eventhandler contains domain event handlers. Handlers are the
// reactive part of the system: they subscribe to the in-process bus and run
// side effects such as badge unlocks, outside the request path.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lernhub/progress-engine/internal/application/command"
	"github.com/lernhub/progress-engine/internal/domain/badge"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP AWARDED HANDLER
// Unlocks achievement badges when a ledger credit pushes the user's total
// past a badge threshold. Unlocks are idempotent at the storage layer, so
// replayed events cannot double-grant.
// ═══════════════════════════════════════════════════════════════════════════

// OnXPAwardedHandler reacts to XP credits with achievement badge unlocks.
type OnXPAwardedHandler struct {
	badgeRepo badge.Repository
	awardXP   *command.AwardXPHandler
	logger    *slog.Logger
}

// NewOnXPAwardedHandler creates a new OnXPAwardedHandler.
func NewOnXPAwardedHandler(
	badgeRepo badge.Repository,
	awardXP *command.AwardXPHandler,
	logger *slog.Logger,
) *OnXPAwardedHandler {
	return &OnXPAwardedHandler{
		badgeRepo: badgeRepo,
		awardXP:   awardXP,
		logger:    logger.With(slog.String("handler", "on_xp_awarded")),
	}
}

// Handle processes an XPAwardedEvent.
func (h *OnXPAwardedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.XPAwardedEvent)
	if !ok {
		return fmt.Errorf("on_xp_awarded: unexpected event type %s", event.EventType())
	}
	// Badge bonuses themselves credit the ledger; reacting to them again
	// would loop.
	if e.Reason == string(reward.ReasonBadgeEarned) {
		return nil
	}
	return h.unlockAchievements(context.Background(), e.UserID, e.NewTotal)
}

// unlockAchievements grants every achievement badge whose XP threshold the
// total now meets.
func (h *OnXPAwardedHandler) unlockAchievements(ctx context.Context, userID string, totalXP int) error {
	candidates, err := h.badgeRepo.ListByCategory(ctx, badge.CategoryAchievement)
	if err != nil {
		return fmt.Errorf("on_xp_awarded: catalog read failed: %w", err)
	}

	for _, b := range candidates {
		if totalXP < b.XPRequired {
			continue
		}
		if err := grantBadge(ctx, h.badgeRepo, h.awardXP, userID, b, h.logger); err != nil {
			return err
		}
	}
	return nil
}

// grantBadge records an unlock and credits the badge bonus. Shared between
// the achievement and streak handlers. An already-earned badge is a no-op.
func grantBadge(
	ctx context.Context,
	badgeRepo badge.Repository,
	awardXP *command.AwardXPHandler,
	userID string,
	b *badge.Badge,
	logger *slog.Logger,
) error {
	earned, err := badgeRepo.HasEarned(ctx, userID, b.ID)
	if err != nil {
		return fmt.Errorf("badge earned check failed: %w", err)
	}
	if earned {
		return nil
	}

	if err := badgeRepo.Grant(ctx, userID, b.ID, nowUTC()); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("badge grant failed: %w", err)
	}

	logger.Info("badge unlocked",
		slog.String("user_id", userID),
		slog.String("badge_code", b.Code),
		slog.String("rarity", string(b.Rarity)),
	)

	if b.BonusXP <= 0 {
		return nil
	}
	if _, err := awardXP.Handle(ctx, command.AwardXPCommand{
		UserID:      userID,
		Amount:      b.BonusXP,
		Reason:      reward.ReasonBadgeEarned,
		ReferenceID: b.ID,
	}); err != nil {
		// The unlock itself stands; the missing bonus shows up in
		// reconciliation and can be re-credited manually.
		logger.Error("badge bonus award failed",
			slog.String("user_id", userID),
			slog.String("badge_code", b.Code),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
