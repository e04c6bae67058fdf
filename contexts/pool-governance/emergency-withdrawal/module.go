package emergencywithdrawal

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	httpadapter "tontine/contexts/pool-governance/emergency-withdrawal/adapters/http"
	"tontine/contexts/pool-governance/emergency-withdrawal/adapters/memory"
	"tontine/contexts/pool-governance/emergency-withdrawal/application/commands"
	"tontine/contexts/pool-governance/emergency-withdrawal/application/queries"
	"tontine/contexts/pool-governance/emergency-withdrawal/application/workers"
	"tontine/contexts/pool-governance/emergency-withdrawal/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Requests     ports.RequestRepository
	Votes        ports.VoteRepository
	Membership   ports.MembershipProvider
	Reputation   ports.ReputationApplier
	Outbox       ports.OutboxWriter
	OutboxRepo   ports.OutboxRepository
	Publisher    ports.EventPublisher
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	VotingWindow time.Duration
	PenaltyRate  decimal.Decimal
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	withdrawals := commands.WithdrawalUseCase{
		Requests:     deps.Requests,
		Votes:        deps.Votes,
		Membership:   deps.Membership,
		Reputation:   deps.Reputation,
		Outbox:       deps.Outbox,
		Clock:        deps.Clock,
		IDGen:        deps.IDGenerator,
		VotingWindow: deps.VotingWindow,
		PenaltyRate:  deps.PenaltyRate,
		Logger:       deps.Logger,
	}
	status := queries.StatusUseCase{
		Requests:   deps.Requests,
		Votes:      deps.Votes,
		Membership: deps.Membership,
	}
	return Module{
		Handler: httpadapter.Handler{
			Withdrawals: withdrawals,
			Status:      status,
			Logger:      deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(reputation ports.ReputationApplier, publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Requests:    store,
		Votes:       store,
		Membership:  store,
		Reputation:  reputation,
		Outbox:      store,
		OutboxRepo:  store,
		Publisher:   publisher,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
