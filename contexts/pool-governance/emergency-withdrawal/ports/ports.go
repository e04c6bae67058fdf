package ports

import (
	"context"
	"time"

	contractsv1 "tontine/contracts/gen/events/v1"
	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
)

type RequestRepository interface {
	CreateRequest(ctx context.Context, request entities.WithdrawalRequest) error
	GetRequest(ctx context.Context, requestID string) (entities.WithdrawalRequest, error)
	ListRequestsByPool(ctx context.Context, poolID string) ([]entities.WithdrawalRequest, error)
	// TransitionState is the compare-and-swap terminal transition: it moves
	// the request from `from` to `to` only if the stored state still equals
	// `from`, and reports whether this caller won the swap.
	TransitionState(ctx context.Context, requestID string, from entities.RequestState, to entities.RequestState, resolvedAt time.Time) (bool, error)
}

type VoteRepository interface {
	GetVote(ctx context.Context, requestID string, voter string) (entities.Vote, bool, error)
	InsertVote(ctx context.Context, vote entities.Vote) error
	// SwitchVote atomically replaces the voter's existing vote on the
	// request with the supplied one. No reader may observe a state where
	// the voter is counted in both buckets or in neither.
	SwitchVote(ctx context.Context, vote entities.Vote) error
	ListVotesByRequest(ctx context.Context, requestID string) ([]entities.Vote, error)
}

// MembershipProvider is the external identity/membership collaborator. The
// returned slice is the full member list for the pool; eligibility and the
// requester exclusion are applied by the use cases.
type MembershipProvider interface {
	PoolMembers(ctx context.Context, poolID string) ([]string, error)
}

// ReputationApplier bridges into the member-trust context. Implementations
// must make the penalty idempotent per request so a retried resolve never
// applies the delta twice.
type ReputationApplier interface {
	ApplyEmergencyPenalty(ctx context.Context, requestID string, wallet string, poolID string) error
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
