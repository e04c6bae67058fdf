package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"tontine/contexts/member-trust/badge-evaluator/application"
	"tontine/contexts/member-trust/badge-evaluator/domain/entities"
	httptransport "tontine/contexts/member-trust/badge-evaluator/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) EvaluateHandler(ctx context.Context, wallet string) (httptransport.EvaluateResponse, error) {
	result, err := h.Service.Evaluate(ctx, wallet)
	if err != nil {
		return httptransport.EvaluateResponse{}, err
	}
	return httptransport.EvaluateResponse{
		Wallet:    result.Wallet,
		NewBadges: mapBadges(result.NewBadges),
		Earned:    mapBadges(result.Earned),
	}, nil
}

func (h Handler) ListBadgesHandler(ctx context.Context, wallet string) (httptransport.ListBadgesResponse, error) {
	items, err := h.Service.ListBadges(ctx, wallet)
	if err != nil {
		return httptransport.ListBadgesResponse{}, err
	}
	return httptransport.ListBadgesResponse{Items: mapBadges(items)}, nil
}

func mapBadges(badges []entities.Badge) []httptransport.BadgeDTO {
	items := make([]httptransport.BadgeDTO, 0, len(badges))
	for _, badge := range badges {
		items = append(items, httptransport.BadgeDTO{
			BadgeID:  badge.BadgeID,
			Wallet:   badge.Wallet,
			Type:     string(badge.Type),
			EarnedAt: badge.EarnedAt.Format(time.RFC3339),
		})
	}
	return items
}
