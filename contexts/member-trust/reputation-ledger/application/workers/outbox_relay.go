package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tontine/contexts/member-trust/reputation-ledger/ports"
)

// OutboxRelay drains pending reputation.changed rows to the event bus.
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
		logger.Error("reputation outbox list failed",
			"event", "reputation_outbox_list_failed",
			"module", "member-trust/reputation-ledger",
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
			logger.Error("reputation outbox decode failed",
				"event", "reputation_outbox_decode_failed",
				"module", "member-trust/reputation-ledger",
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
			logger.Error("reputation outbox publish failed",
				"event", "reputation_outbox_publish_failed",
				"module", "member-trust/reputation-ledger",
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

	logger.Info("reputation outbox relay cycle completed",
		"event", "reputation_outbox_relay_completed",
		"module", "member-trust/reputation-ledger",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
