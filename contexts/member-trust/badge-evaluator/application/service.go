package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"tontine/contexts/member-trust/badge-evaluator/domain/entities"
	domainerrors "tontine/contexts/member-trust/badge-evaluator/domain/errors"
	"tontine/contexts/member-trust/badge-evaluator/ports"
)

const communityBuilderThreshold = 3

// snapshotRule is a pure predicate over the profile snapshot. Rules never
// touch I/O; the external invite rule is handled separately.
type snapshotRule struct {
	badgeType entities.BadgeType
	satisfied func(ports.ProfileSnapshot) bool
}

// snapshotRules is evaluated in order so awards come out deterministic.
var snapshotRules = []snapshotRule{
	{
		badgeType: entities.BadgeFirstContribution,
		satisfied: func(s ports.ProfileSnapshot) bool {
			return s.TotalContributions >= 1
		},
	},
	{
		badgeType: entities.BadgeReliableMember,
		satisfied: func(s ports.ProfileSnapshot) bool {
			return s.OnTimePayments >= 5
		},
	},
	{
		badgeType: entities.BadgePerfectRecord,
		satisfied: func(s ports.ProfileSnapshot) bool {
			return s.OnTimePayments >= 10 && s.LatePayments == 0 && s.MissedPayments == 0
		},
	},
	{
		badgeType: entities.BadgeGroupVeteran,
		satisfied: func(s ports.ProfileSnapshot) bool {
			return s.CompletedGroups >= 3
		},
	},
	{
		badgeType: entities.BadgeTrustedMember,
		satisfied: func(s ports.ProfileSnapshot) bool {
			return s.Score >= 80
		},
	},
}

type Service struct {
	Profiles ports.ProfileProvider
	Invites  ports.InviteStatsProvider
	Repo     ports.BadgeRepository
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

type EvaluateResult struct {
	Wallet    string
	NewBadges []entities.Badge
	Earned    []entities.Badge
}

// Evaluate awards every rule the member now satisfies and does not yet
// hold. A second call on an unchanged profile awards nothing. When the
// invite provider fails only the community_builder rule is skipped.
func (s Service) Evaluate(ctx context.Context, wallet string) (EvaluateResult, error) {
	logger := resolveLogger(s.Logger)
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return EvaluateResult{}, domainerrors.ErrInvalidInput
	}

	snapshot, found, err := s.Profiles.Snapshot(ctx, wallet)
	if err != nil {
		return EvaluateResult{}, err
	}
	if !found {
		return EvaluateResult{}, domainerrors.ErrProfileNotFound
	}

	earned, err := s.Repo.ListBadges(ctx, wallet)
	if err != nil {
		return EvaluateResult{}, err
	}
	held := make(map[entities.BadgeType]bool, len(earned))
	for _, badge := range earned {
		held[badge.Type] = true
	}

	now := s.now()
	result := EvaluateResult{Wallet: wallet}

	for _, rule := range snapshotRules {
		if held[rule.badgeType] || !rule.satisfied(snapshot) {
			continue
		}
		badge, awarded, err := s.award(ctx, wallet, rule.badgeType, now)
		if err != nil {
			return EvaluateResult{}, err
		}
		if awarded {
			result.NewBadges = append(result.NewBadges, badge)
		}
	}

	if !held[entities.BadgeCommunityBuilder] && s.Invites != nil {
		invites, err := s.Invites.SuccessfulInvites(ctx, wallet)
		if err != nil {
			logger.Warn("invite stats lookup failed, skipping community builder rule",
				"event", "badge_invite_stats_unavailable",
				"module", "member-trust/badge-evaluator",
				"layer", "application",
				"wallet", wallet,
				"error", err.Error(),
			)
		} else if invites >= communityBuilderThreshold {
			badge, awarded, err := s.award(ctx, wallet, entities.BadgeCommunityBuilder, now)
			if err != nil {
				return EvaluateResult{}, err
			}
			if awarded {
				result.NewBadges = append(result.NewBadges, badge)
			}
		}
	}

	result.Earned, err = s.Repo.ListBadges(ctx, wallet)
	if err != nil {
		return EvaluateResult{}, err
	}

	if len(result.NewBadges) > 0 {
		logger.Info("badges awarded",
			"event", "badges_awarded",
			"module", "member-trust/badge-evaluator",
			"layer", "application",
			"wallet", wallet,
			"new_badge_count", len(result.NewBadges),
		)
	}
	return result, nil
}

func (s Service) ListBadges(ctx context.Context, wallet string) ([]entities.Badge, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListBadges(ctx, wallet)
}

func (s Service) award(ctx context.Context, wallet string, badgeType entities.BadgeType, now time.Time) (entities.Badge, bool, error) {
	badgeID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Badge{}, false, err
	}
	badge := entities.Badge{
		BadgeID:  strings.TrimSpace(badgeID),
		Wallet:   wallet,
		Type:     badgeType,
		EarnedAt: now,
	}
	created, err := s.Repo.CreateBadge(ctx, badge)
	if err != nil {
		return entities.Badge{}, false, err
	}
	if !created {
		// Lost the race to a concurrent evaluation; the badge exists.
		return entities.Badge{}, false, nil
	}
	if err := s.appendActivityEvent(ctx, badge, now); err != nil {
		return entities.Badge{}, false, err
	}
	return badge, true, nil
}

func (s Service) appendActivityEvent(ctx context.Context, badge entities.Badge, now time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	data, err := json.Marshal(map[string]any{
		"wallet":      badge.Wallet,
		"badge_type":  string(badge.Type),
		"occurred_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          badge.BadgeID,
		EventType:        "badge.earned",
		OccurredAt:       now,
		SourceService:    "badge-evaluator",
		SchemaVersion:    1,
		PartitionKeyPath: "wallet",
		PartitionKey:     strings.ToLower(badge.Wallet),
		Data:             data,
	})
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
