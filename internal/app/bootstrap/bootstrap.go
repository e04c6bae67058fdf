package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	badgeevaluator "tontine/contexts/member-trust/badge-evaluator"
	badgepostgres "tontine/contexts/member-trust/badge-evaluator/adapters/postgres"
	badgeworkers "tontine/contexts/member-trust/badge-evaluator/application/workers"
	badgeports "tontine/contexts/member-trust/badge-evaluator/ports"
	reputationledger "tontine/contexts/member-trust/reputation-ledger"
	reputationpostgres "tontine/contexts/member-trust/reputation-ledger/adapters/postgres"
	reputationapp "tontine/contexts/member-trust/reputation-ledger/application"
	reputationworkers "tontine/contexts/member-trust/reputation-ledger/application/workers"
	reputationerrors "tontine/contexts/member-trust/reputation-ledger/domain/errors"
	emergencywithdrawal "tontine/contexts/pool-governance/emergency-withdrawal"
	withdrawalpostgres "tontine/contexts/pool-governance/emergency-withdrawal/adapters/postgres"
	withdrawalworkers "tontine/contexts/pool-governance/emergency-withdrawal/application/workers"
	"tontine/internal/platform/config"
	"tontine/internal/platform/db"
	"tontine/internal/platform/httpserver"
	"tontine/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	withdrawalRelay withdrawalworkers.OutboxRelay
	reputationRelay reputationworkers.OutboxRelay
	badgeRelay      badgeworkers.OutboxRelay
	pollInterval    time.Duration
	logger          *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	reputationRepo := reputationpostgres.NewRepository(pg.DB, logger)
	reputationModule := reputationledger.NewModule(reputationledger.Dependencies{
		Repository:     reputationRepo,
		Idempotency:    reputationRepo,
		Outbox:         reputationRepo,
		OutboxRepo:     reputationRepo,
		Clock:          reputationpostgres.SystemClock{},
		IDGenerator:    reputationpostgres.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		RetryBudget:    cfg.ReputationRetryBudget,
		Logger:         logger,
	})

	withdrawalRepo := withdrawalpostgres.NewRepository(pg.DB, logger)
	withdrawalModule := emergencywithdrawal.NewModule(emergencywithdrawal.Dependencies{
		Requests:   withdrawalRepo,
		Votes:      withdrawalRepo,
		Membership: withdrawalRepo,
		Reputation: reputationledger.EmergencyPenaltyBridge{
			Service: reputationModule.Service,
		},
		Outbox:       withdrawalRepo,
		OutboxRepo:   withdrawalRepo,
		Clock:        withdrawalpostgres.SystemClock{},
		IDGenerator:  withdrawalpostgres.UUIDGenerator{},
		VotingWindow: cfg.VotingWindow,
		PenaltyRate:  decimal.NewFromFloat(cfg.PenaltyRate),
		Logger:       logger,
	})

	badgeRepo := badgepostgres.NewRepository(pg.DB, logger)
	badgeModule := badgeevaluator.NewModule(badgeevaluator.Dependencies{
		Profiles: ReputationProfileProvider{
			Service: reputationModule.Service,
		},
		Invites:     badgeRepo,
		Repository:  badgeRepo,
		Outbox:      badgeRepo,
		OutboxRepo:  badgeRepo,
		Clock:       badgepostgres.SystemClock{},
		IDGenerator: badgepostgres.UUIDGenerator{},
		Logger:      logger,
	})

	server := httpserver.New(withdrawalModule, reputationModule, badgeModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	withdrawalRepo := withdrawalpostgres.NewRepository(pg.DB, logger)
	reputationRepo := reputationpostgres.NewRepository(pg.DB, logger)
	badgeRepo := badgepostgres.NewRepository(pg.DB, logger)

	return &WorkerApp{
		postgres: pg,
		withdrawalRelay: withdrawalworkers.OutboxRelay{
			Outbox:    withdrawalRepo,
			Publisher: kafka,
			Clock:     withdrawalpostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		reputationRelay: reputationworkers.OutboxRelay{
			Outbox:    reputationRepo,
			Publisher: kafka,
			Clock:     reputationpostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		badgeRelay: badgeworkers.OutboxRelay{
			Outbox:    badgeRepo,
			Publisher: kafka,
			Clock:     badgepostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.withdrawalRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.reputationRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.badgeRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// ReputationProfileProvider projects the reputation profile into the read
// model badge rules evaluate against.
type ReputationProfileProvider struct {
	Service reputationapp.Service
}

func (p ReputationProfileProvider) Snapshot(ctx context.Context, wallet string) (badgeports.ProfileSnapshot, bool, error) {
	profile, err := p.Service.GetProfile(ctx, wallet)
	if err != nil {
		if errors.Is(err, reputationerrors.ErrProfileNotFound) {
			return badgeports.ProfileSnapshot{}, false, nil
		}
		return badgeports.ProfileSnapshot{}, false, err
	}
	return badgeports.ProfileSnapshot{
		Wallet:             profile.Wallet,
		Score:              profile.Score,
		TotalContributions: profile.TotalContributions,
		CompletedGroups:    profile.CompletedGroups,
		OnTimePayments:     profile.OnTimePayments,
		LatePayments:       profile.LatePayments,
		MissedPayments:     profile.MissedPayments,
	}, true, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
