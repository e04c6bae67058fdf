package ports

import (
	"context"
	"time"

	contractsv1 "tontine/contracts/gen/events/v1"
	"tontine/contexts/member-trust/reputation-ledger/domain/entities"
)

type ProfileRepository interface {
	GetProfile(ctx context.Context, wallet string) (entities.MemberProfile, bool, error)
	// AppendEvent persists the event and the updated profile projection
	// atomically. expectedVersion 0 means the profile must not exist yet;
	// otherwise the stored version must still equal expectedVersion or the
	// call fails with a version conflict.
	AppendEvent(ctx context.Context, event entities.ReputationEvent, profile entities.MemberProfile, expectedVersion int64) error
	ListEvents(ctx context.Context, wallet string) ([]entities.ReputationEvent, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
