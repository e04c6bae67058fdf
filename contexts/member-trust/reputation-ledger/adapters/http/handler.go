package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tontine/contexts/member-trust/reputation-ledger/application"
	"tontine/contexts/member-trust/reputation-ledger/domain/entities"
	httptransport "tontine/contexts/member-trust/reputation-ledger/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ApplyHandler(
	ctx context.Context,
	wallet string,
	idempotencyKey string,
	req httptransport.ApplyReputationRequest,
) (httptransport.ApplyReputationResponse, error) {
	result, err := h.Service.Apply(ctx, idempotencyKey, application.ApplyInput{
		Wallet: wallet,
		Action: entities.ActionType(strings.TrimSpace(req.ActionType)),
		PoolID: req.PoolID,
	})
	if err != nil {
		return httptransport.ApplyReputationResponse{}, err
	}
	return httptransport.ApplyReputationResponse{
		Profile:  mapProfile(result.Profile),
		Event:    mapEvent(result.Event),
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) GetProfileHandler(ctx context.Context, wallet string) (httptransport.GetProfileResponse, error) {
	profile, err := h.Service.GetProfile(ctx, wallet)
	if err != nil {
		return httptransport.GetProfileResponse{}, err
	}
	return httptransport.GetProfileResponse{Profile: mapProfile(profile)}, nil
}

func (h Handler) ListEventsHandler(ctx context.Context, wallet string) (httptransport.ListEventsResponse, error) {
	events, err := h.Service.ListEvents(ctx, wallet)
	if err != nil {
		return httptransport.ListEventsResponse{}, err
	}
	items := make([]httptransport.ReputationEventDTO, 0, len(events))
	for _, event := range events {
		items = append(items, mapEvent(event))
	}
	return httptransport.ListEventsResponse{Items: items}, nil
}

func (h Handler) ReplayHandler(ctx context.Context, wallet string) (httptransport.ReplayResponse, error) {
	result, err := h.Service.Replay(ctx, wallet)
	if err != nil {
		return httptransport.ReplayResponse{}, err
	}
	return httptransport.ReplayResponse{
		Wallet:          result.Wallet,
		StoredScore:     result.StoredScore,
		RecomputedScore: result.RecomputedScore,
		EventCount:      result.EventCount,
		Diverged:        result.Diverged,
	}, nil
}

func mapProfile(profile entities.MemberProfile) httptransport.MemberProfileDTO {
	return httptransport.MemberProfileDTO{
		Wallet:             profile.Wallet,
		Score:              profile.Score,
		Version:            profile.Version,
		TotalGroupsJoined:  profile.TotalGroupsJoined,
		ActiveGroups:       profile.ActiveGroups,
		CompletedGroups:    profile.CompletedGroups,
		TotalContributions: profile.TotalContributions,
		OnTimePayments:     profile.OnTimePayments,
		LatePayments:       profile.LatePayments,
		MissedPayments:     profile.MissedPayments,
		Reliability:        profile.Reliability(),
		CreatedAt:          profile.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          profile.UpdatedAt.Format(time.RFC3339),
	}
}

func mapEvent(event entities.ReputationEvent) httptransport.ReputationEventDTO {
	return httptransport.ReputationEventDTO{
		EventID:       event.EventID,
		Wallet:        event.Wallet,
		PoolID:        event.PoolID,
		ActionType:    string(event.Action),
		PointsChange:  event.PointsChange,
		PreviousScore: event.PreviousScore,
		NewScore:      event.NewScore,
		Sequence:      event.Sequence,
		CreatedAt:     event.CreatedAt.Format(time.RFC3339),
	}
}
