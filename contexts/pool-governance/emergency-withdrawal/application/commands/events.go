package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	"tontine/contexts/pool-governance/emergency-withdrawal/ports"
)

// appendActivityEvent writes a one-shot activity record under a fresh ID.
func (uc WithdrawalUseCase) appendActivityEvent(
	ctx context.Context,
	eventType string,
	request entities.WithdrawalRequest,
	occurredAt time.Time,
	extra map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return uc.writeActivityEvent(ctx, eventID, eventType, request, occurredAt, extra)
}

// appendResolutionEvent derives the ID from the request and event type, so
// a resolve retried after a partial failure re-appends the same row instead
// of a duplicate. At most one resolution event of each type exists per
// request.
func (uc WithdrawalUseCase) appendResolutionEvent(
	ctx context.Context,
	eventType string,
	request entities.WithdrawalRequest,
	occurredAt time.Time,
	extra map[string]any,
) error {
	name := "emergency-withdrawal:" + eventType + ":" + request.RequestID
	eventID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
	return uc.writeActivityEvent(ctx, eventID, eventType, request, occurredAt, extra)
}

func (uc WithdrawalUseCase) writeActivityEvent(
	ctx context.Context,
	eventID string,
	eventType string,
	request entities.WithdrawalRequest,
	occurredAt time.Time,
	extra map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	// Second precision keeps the payload byte-stable across retries and a
	// database round trip.
	occurredAt = occurredAt.UTC().Truncate(time.Second)
	payload := map[string]any{
		"request_id":   request.RequestID,
		"pool_id":      request.PoolID,
		"user_address": request.Requester,
		"state":        string(request.State),
		"occurred_at":  occurredAt.Format(time.RFC3339),
	}
	for key, value := range extra {
		payload[key] = value
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt,
		SourceService:    "emergency-withdrawal",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "pool_id",
		PartitionKey:     request.PoolID,
		Data:             data,
	})
}
