package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tontine/contexts/member-trust/badge-evaluator/ports"
)

// OutboxRelay drains pending badge.earned rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("badge outbox list failed",
			"event", "badge_outbox_list_failed",
			"module", "member-trust/badge-evaluator",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("badge outbox decode failed",
				"event", "badge_outbox_decode_failed",
				"module", "member-trust/badge-evaluator",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("badge outbox publish failed",
				"event", "badge_outbox_publish_failed",
				"module", "member-trust/badge-evaluator",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			return err
		}
	}

	logger.Info("badge outbox relay cycle completed",
		"event", "badge_outbox_relay_completed",
		"module", "member-trust/badge-evaluator",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
