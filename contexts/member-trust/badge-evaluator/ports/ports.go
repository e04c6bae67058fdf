package ports

import (
	"context"
	"time"

	contractsv1 "tontine/contracts/gen/events/v1"
	"tontine/contexts/member-trust/badge-evaluator/domain/entities"
)

// ProfileSnapshot is the read model badge rules evaluate against. It is
// deliberately a plain struct so rules stay pure functions.
type ProfileSnapshot struct {
	Wallet             string
	Score              int
	TotalContributions int
	CompletedGroups    int
	OnTimePayments     int
	LatePayments       int
	MissedPayments     int
}

type ProfileProvider interface {
	Snapshot(ctx context.Context, wallet string) (ProfileSnapshot, bool, error)
}

// InviteStatsProvider backs the one externally-evidenced rule. A failure
// here must not block evaluation of the snapshot-only rules.
type InviteStatsProvider interface {
	SuccessfulInvites(ctx context.Context, wallet string) (int, error)
}

type BadgeRepository interface {
	ListBadges(ctx context.Context, wallet string) ([]entities.Badge, error)
	// CreateBadge reports false when the (wallet, type) pair already
	// exists; the unique constraint is the concurrency backstop.
	CreateBadge(ctx context.Context, badge entities.Badge) (bool, error)
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
