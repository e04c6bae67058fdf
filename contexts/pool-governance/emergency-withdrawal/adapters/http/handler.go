package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	application "tontine/contexts/pool-governance/emergency-withdrawal/application"
	"tontine/contexts/pool-governance/emergency-withdrawal/application/commands"
	"tontine/contexts/pool-governance/emergency-withdrawal/application/queries"
	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
	httptransport "tontine/contexts/pool-governance/emergency-withdrawal/transport/http"
)

type Handler struct {
	Withdrawals commands.WithdrawalUseCase
	Status      queries.StatusUseCase
	Logger      *slog.Logger
}

func (h Handler) CreateWithdrawalHandler(
	ctx context.Context,
	poolID string,
	req httptransport.CreateWithdrawalRequest,
) (httptransport.CreateWithdrawalResponse, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return httptransport.CreateWithdrawalResponse{}, domainerrors.ErrInvalidAmount
	}
	request, err := h.Withdrawals.CreateRequest(ctx, commands.CreateRequestCommand{
		PoolID:    poolID,
		Requester: req.Requester,
		Amount:    amount,
		Reason:    req.Reason,
	})
	if err != nil {
		return httptransport.CreateWithdrawalResponse{}, err
	}
	application.ResolveLogger(h.Logger).Info("withdrawal request accepted",
		"event", "withdrawal_request_accepted",
		"module", "pool-governance/emergency-withdrawal",
		"layer", "transport",
		"request_id", request.RequestID,
		"pool_id", request.PoolID,
	)
	return httptransport.CreateWithdrawalResponse{Request: mapRequest(request)}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	requestID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Withdrawals.CastVote(ctx, commands.CastVoteCommand{
		RequestID: requestID,
		Voter:     req.Voter,
		Support:   req.Support,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		RequestID: result.Vote.RequestID,
		Voter:     result.Vote.Voter,
		Support:   result.Vote.Support,
		Switched:  result.Switched,
		Tally:     mapTally(result.Tally),
	}, nil
}

func (h Handler) ResolveWithdrawalHandler(ctx context.Context, requestID string) (httptransport.ResolveResponse, error) {
	result, err := h.Withdrawals.Resolve(ctx, requestID)
	if err != nil {
		return httptransport.ResolveResponse{}, err
	}
	response := httptransport.ResolveResponse{
		Request:      mapRequest(result.Request),
		Tally:        mapTally(result.Tally),
		Transitioned: result.Transitioned,
	}
	if result.Split != nil {
		response.Payout = &httptransport.PayoutDTO{
			Gross:   result.Split.Gross.String(),
			Penalty: result.Split.Penalty.String(),
			Net:     result.Split.Net.String(),
		}
	}
	return response, nil
}

func (h Handler) GetWithdrawalHandler(ctx context.Context, requestID string) (httptransport.WithdrawalStatusResponse, error) {
	status, err := h.Status.GetRequest(ctx, requestID)
	if err != nil {
		return httptransport.WithdrawalStatusResponse{}, err
	}
	return httptransport.WithdrawalStatusResponse{
		Request: mapRequest(status.Request),
		Tally:   mapTally(status.Tally),
	}, nil
}

func (h Handler) ListWithdrawalsHandler(ctx context.Context, poolID string) (httptransport.ListWithdrawalsResponse, error) {
	items, err := h.Status.ListByPool(ctx, poolID)
	if err != nil {
		return httptransport.ListWithdrawalsResponse{}, err
	}
	result := make([]httptransport.WithdrawalStatusResponse, 0, len(items))
	for _, item := range items {
		result = append(result, httptransport.WithdrawalStatusResponse{
			Request: mapRequest(item.Request),
			Tally:   mapTally(item.Tally),
		})
	}
	return httptransport.ListWithdrawalsResponse{Items: result}, nil
}

func mapRequest(item entities.WithdrawalRequest) httptransport.WithdrawalRequestDTO {
	result := httptransport.WithdrawalRequestDTO{
		RequestID:      item.RequestID,
		PoolID:         item.PoolID,
		Requester:      item.Requester,
		Amount:         item.Amount.String(),
		Reason:         item.Reason,
		State:          string(item.State),
		CreatedAt:      item.CreatedAt.Format(time.RFC3339),
		VotingDeadline: item.VotingDeadline.Format(time.RFC3339),
	}
	if item.ResolvedAt != nil {
		result.ResolvedAt = item.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return result
}

func mapTally(tally entities.Tally) httptransport.TallyDTO {
	return httptransport.TallyDTO{
		VotesFor:       tally.VotesFor,
		VotesAgainst:   tally.VotesAgainst,
		EligibleVoters: tally.EligibleVoters,
		Quorum:         tally.Quorum,
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, domainerrors.ErrInvalidAmount
	}
	return decimal.NewFromString(value)
}
