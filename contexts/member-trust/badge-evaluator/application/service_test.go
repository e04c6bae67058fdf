package application

import (
	"context"
	"errors"
	"testing"

	"tontine/contexts/member-trust/badge-evaluator/adapters/memory"
	"tontine/contexts/member-trust/badge-evaluator/domain/entities"
	domainerrors "tontine/contexts/member-trust/badge-evaluator/domain/errors"
	"tontine/contexts/member-trust/badge-evaluator/ports"
)

type stubProfiles struct {
	snapshots map[string]ports.ProfileSnapshot
}

func (s stubProfiles) Snapshot(_ context.Context, wallet string) (ports.ProfileSnapshot, bool, error) {
	snapshot, ok := s.snapshots[wallet]
	return snapshot, ok, nil
}

type failingInvites struct{}

func (failingInvites) SuccessfulInvites(context.Context, string) (int, error) {
	return 0, errors.New("invite service timeout")
}

func newService(t *testing.T, snapshots map[string]ports.ProfileSnapshot, invites ports.InviteStatsProvider) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	if invites == nil {
		invites = store
	}
	service := Service{
		Profiles: stubProfiles{snapshots: snapshots},
		Invites:  invites,
		Repo:     store,
		Outbox:   store,
		Clock:    store,
		IDGen:    store,
	}
	return service, store
}

func badgeTypes(badges []entities.Badge) map[entities.BadgeType]bool {
	types := make(map[entities.BadgeType]bool, len(badges))
	for _, badge := range badges {
		types[badge.Type] = true
	}
	return types
}

func TestEvaluateAwardsSatisfiedRules(t *testing.T) {
	service, _ := newService(t, map[string]ports.ProfileSnapshot{
		"0xabc": {
			Wallet:             "0xabc",
			Score:              85,
			TotalContributions: 12,
			CompletedGroups:    3,
			OnTimePayments:     11,
		},
	}, nil)

	result, err := service.Evaluate(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	types := badgeTypes(result.NewBadges)
	for _, want := range []entities.BadgeType{
		entities.BadgeFirstContribution,
		entities.BadgeReliableMember,
		entities.BadgePerfectRecord,
		entities.BadgeGroupVeteran,
		entities.BadgeTrustedMember,
	} {
		if !types[want] {
			t.Fatalf("expected badge %q to be awarded, got %v", want, result.NewBadges)
		}
	}
	if types[entities.BadgeCommunityBuilder] {
		t.Fatalf("community builder must not be awarded without invites")
	}
}

func TestEvaluateSecondCallAwardsNothing(t *testing.T) {
	service, _ := newService(t, map[string]ports.ProfileSnapshot{
		"0xabc": {Wallet: "0xabc", Score: 85, TotalContributions: 1},
	}, nil)

	first, err := service.Evaluate(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	if len(first.NewBadges) == 0 {
		t.Fatalf("first evaluate awarded nothing")
	}

	second, err := service.Evaluate(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(second.NewBadges) != 0 {
		t.Fatalf("second evaluate on unchanged profile awarded %d badges", len(second.NewBadges))
	}
	if len(second.Earned) != len(first.Earned) {
		t.Fatalf("earned set changed between evaluations: %d -> %d", len(first.Earned), len(second.Earned))
	}
}

func TestEvaluateThresholdBoundaries(t *testing.T) {
	service, _ := newService(t, map[string]ports.ProfileSnapshot{
		"0xlow":  {Wallet: "0xlow", Score: 79, OnTimePayments: 4, CompletedGroups: 2},
		"0xedge": {Wallet: "0xedge", Score: 80, OnTimePayments: 5, CompletedGroups: 3},
	}, nil)

	low, err := service.Evaluate(context.Background(), "0xlow")
	if err != nil {
		t.Fatalf("evaluate low: %v", err)
	}
	if len(low.NewBadges) != 0 {
		t.Fatalf("below thresholds awarded %v", low.NewBadges)
	}

	edge, err := service.Evaluate(context.Background(), "0xedge")
	if err != nil {
		t.Fatalf("evaluate edge: %v", err)
	}
	types := badgeTypes(edge.NewBadges)
	if !types[entities.BadgeTrustedMember] || !types[entities.BadgeReliableMember] || !types[entities.BadgeGroupVeteran] {
		t.Fatalf("exact thresholds must award, got %v", edge.NewBadges)
	}
}

func TestEvaluatePerfectRecordRequiresCleanHistory(t *testing.T) {
	service, _ := newService(t, map[string]ports.ProfileSnapshot{
		"0xabc": {Wallet: "0xabc", OnTimePayments: 15, LatePayments: 1},
	}, nil)

	result, err := service.Evaluate(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if badgeTypes(result.NewBadges)[entities.BadgePerfectRecord] {
		t.Fatalf("perfect record awarded despite late payment")
	}
}

func TestEvaluateCommunityBuilderFromInviteStats(t *testing.T) {
	service, store := newService(t, map[string]ports.ProfileSnapshot{
		"0xabc": {Wallet: "0xabc"},
	}, nil)
	store.SetInviteStats("0xabc", 3)

	result, err := service.Evaluate(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !badgeTypes(result.NewBadges)[entities.BadgeCommunityBuilder] {
		t.Fatalf("3 successful invites must award community builder, got %v", result.NewBadges)
	}
}

func TestEvaluateInviteProviderFailureSkipsOnlyExternalRule(t *testing.T) {
	service, _ := newService(t, map[string]ports.ProfileSnapshot{
		"0xabc": {Wallet: "0xabc", TotalContributions: 2},
	}, failingInvites{})

	result, err := service.Evaluate(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("provider failure must not fail evaluation: %v", err)
	}
	types := badgeTypes(result.NewBadges)
	if !types[entities.BadgeFirstContribution] {
		t.Fatalf("snapshot rules must still evaluate, got %v", result.NewBadges)
	}
	if types[entities.BadgeCommunityBuilder] {
		t.Fatalf("external rule must be skipped on provider failure")
	}
}

func TestEvaluateUnknownProfile(t *testing.T) {
	service, _ := newService(t, map[string]ports.ProfileSnapshot{}, nil)

	_, err := service.Evaluate(context.Background(), "0xnobody")
	if !errors.Is(err, domainerrors.ErrProfileNotFound) {
		t.Fatalf("got %v, want ErrProfileNotFound", err)
	}
}

func TestListBadges(t *testing.T) {
	service, _ := newService(t, map[string]ports.ProfileSnapshot{
		"0xabc": {Wallet: "0xabc", TotalContributions: 1},
	}, nil)

	if _, err := service.Evaluate(context.Background(), "0xabc"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	badges, err := service.ListBadges(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	if len(badges) != 1 || badges[0].Type != entities.BadgeFirstContribution {
		t.Fatalf("unexpected badge list %v", badges)
	}
}
