package badgeevaluator

import (
	"log/slog"

	httpadapter "tontine/contexts/member-trust/badge-evaluator/adapters/http"
	"tontine/contexts/member-trust/badge-evaluator/adapters/memory"
	"tontine/contexts/member-trust/badge-evaluator/application"
	"tontine/contexts/member-trust/badge-evaluator/application/workers"
	"tontine/contexts/member-trust/badge-evaluator/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Profiles    ports.ProfileProvider
	Invites     ports.InviteStatsProvider
	Repository  ports.BadgeRepository
	Outbox      ports.OutboxWriter
	OutboxRepo  ports.OutboxRepository
	Publisher   ports.EventPublisher
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Profiles: deps.Profiles,
		Invites:  deps.Invites,
		Repo:     deps.Repository,
		Outbox:   deps.Outbox,
		Clock:    deps.Clock,
		IDGen:    deps.IDGenerator,
		Logger:   deps.Logger,
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

func NewInMemoryModule(profiles ports.ProfileProvider, invites ports.InviteStatsProvider, publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Profiles:    profiles,
		Invites:     invites,
		Repository:  store,
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
