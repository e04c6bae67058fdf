package reputationledger

import (
	"context"
	"log/slog"
	"time"

	httpadapter "tontine/contexts/member-trust/reputation-ledger/adapters/http"
	"tontine/contexts/member-trust/reputation-ledger/adapters/memory"
	"tontine/contexts/member-trust/reputation-ledger/application"
	"tontine/contexts/member-trust/reputation-ledger/application/workers"
	"tontine/contexts/member-trust/reputation-ledger/domain/entities"
	"tontine/contexts/member-trust/reputation-ledger/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Repository     ports.ProfileRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	OutboxRepo     ports.OutboxRepository
	Publisher      ports.EventPublisher
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	RetryBudget    int
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:           deps.Repository,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		RetryBudget:    deps.RetryBudget,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:     store,
		Idempotency:    store,
		Outbox:         store,
		OutboxRepo:     store,
		Publisher:      publisher,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}

// EmergencyPenaltyBridge adapts the ledger for the pool-governance context.
// Keying the idempotency record by request ID makes the penalty apply at
// most once per executed withdrawal, however often resolve is retried.
type EmergencyPenaltyBridge struct {
	Service application.Service
}

func (b EmergencyPenaltyBridge) ApplyEmergencyPenalty(ctx context.Context, requestID string, wallet string, poolID string) error {
	_, err := b.Service.Apply(ctx, "emergency:"+requestID, application.ApplyInput{
		Wallet: wallet,
		Action: entities.ActionEmergencyUsed,
		PoolID: poolID,
	})
	return err
}
