package messaging

import (
	"errors"
	"log/slog"
	"time"

	"github.com/lernhub/progress-engine/internal/application/eventhandler"
	"github.com/lernhub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD PIPELINE
// Wires the badge handlers to the bus behind logging. The pipeline lives
// here rather than in main so both binaries subscribe the same way.
// ══════════════════════════════════════════════════════════════════════════════

// RewardPipeline subscribes the reward follow-up handlers (badge unlocks on
// XP and streak changes) to an event bus.
type RewardPipeline struct {
	onXPAwarded     *eventhandler.OnXPAwardedHandler
	onStreakUpdated *eventhandler.OnStreakUpdatedHandler
	logger          *slog.Logger
}

// NewRewardPipeline creates a pipeline over the given handlers.
func NewRewardPipeline(
	onXPAwarded *eventhandler.OnXPAwardedHandler,
	onStreakUpdated *eventhandler.OnStreakUpdatedHandler,
	logger *slog.Logger,
) *RewardPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardPipeline{
		onXPAwarded:     onXPAwarded,
		onStreakUpdated: onStreakUpdated,
		logger:          logger,
	}
}

// Register subscribes the handlers on the bus. Handlers are wrapped so a
// failure is logged with its latency; the bus already isolates panics.
func (p *RewardPipeline) Register(bus shared.EventSubscriber) error {
	if p.onXPAwarded != nil {
		err := bus.Subscribe(shared.EventXPAwarded, p.instrument("on_xp_awarded", p.onXPAwarded.Handle))
		if err != nil {
			return err
		}
	}
	if p.onStreakUpdated != nil {
		err := bus.Subscribe(shared.EventStreakUpdated, p.instrument("on_streak_updated", p.onStreakUpdated.Handle))
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *RewardPipeline) instrument(name string, next shared.EventHandler) shared.EventHandler {
	return func(event shared.Event) error {
		start := time.Now()
		err := next(event)
		if err != nil {
			p.logger.Error("pipeline handler failed",
				"handler", name,
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"duration", time.Since(start),
				"error", err,
			)
			return err
		}
		p.logger.Debug("pipeline handler completed",
			"handler", name,
			"event_type", event.EventType(),
			"duration", time.Since(start),
		)
		return nil
	}
}

// AuditLogger returns a handler that logs every event on the bus. The
// worker subscribes it via SubscribeAll to trace the remote event stream.
func AuditLogger(logger *slog.Logger) shared.EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(event shared.Event) error {
		if event == nil {
			return errors.New("event cannot be nil")
		}
		logger.Info("event observed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"occurred_at", event.OccurredAt(),
		)
		return nil
	}
}
