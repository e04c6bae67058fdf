package commands

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	application "tontine/contexts/pool-governance/emergency-withdrawal/application"
	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
	"tontine/contexts/pool-governance/emergency-withdrawal/domain/payout"
)

type ResolveResult struct {
	Request      entities.WithdrawalRequest
	Tally        entities.Tally
	Transitioned bool
	Split        *payout.Split
}

// Resolve is the lazy, idempotent terminal transition. Deadline expiry is
// only ever evaluated here, on access; there is no background sweeper.
// Concurrent callers race on the repository compare-and-swap and only one
// wins the transition. The terminal side effects run on every resolve of a
// settled request: the reputation port dedupes by request ID and the
// resolution events carry IDs derived from the request, so a resolve
// retried after a partial failure completes the missing effects without
// applying any of them twice.
func (uc WithdrawalUseCase) Resolve(ctx context.Context, requestID string) (ResolveResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ResolveResult{}, domainerrors.ErrInvalidInput
	}

	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return ResolveResult{}, err
	}
	members, err := uc.poolMembers(ctx, request.PoolID)
	if err != nil {
		return ResolveResult{}, err
	}
	votes, err := uc.Votes.ListVotesByRequest(ctx, requestID)
	if err != nil {
		return ResolveResult{}, err
	}
	tally := entities.TallyVotes(votes, len(members)-1)

	if request.State.Terminal() {
		return uc.settledResult(ctx, request, tally)
	}

	now := uc.now()
	var target entities.RequestState
	switch {
	case tally.Approved():
		target = entities.StateExecuted
	case tally.QuorumUnreachable():
		target = entities.StateRejected
	case now.After(request.VotingDeadline):
		target = entities.StateExpired
	default:
		// Still voting; resolve is a no-op read.
		return ResolveResult{Request: request, Tally: tally}, nil
	}

	won, err := uc.Requests.TransitionState(ctx, requestID, entities.StateVoting, target, now)
	if err != nil {
		return ResolveResult{}, err
	}
	if !won {
		// Another caller's CAS landed first; settle on their terminal state.
		settled, err := uc.Requests.GetRequest(ctx, requestID)
		if err != nil {
			return ResolveResult{}, err
		}
		return uc.settledResult(ctx, settled, tally)
	}

	request.State = target
	request.ResolvedAt = &now

	result := ResolveResult{Request: request, Tally: tally, Transitioned: true}
	if target == entities.StateExecuted {
		split := payout.Compute(request.Amount, uc.penaltyRate())
		result.Split = &split
	}
	if err := uc.terminalEffects(ctx, request, result.Split); err != nil {
		return ResolveResult{}, err
	}

	logger.Info("withdrawal request resolved",
		"event", "withdrawal_request_resolved",
		"module", "pool-governance/emergency-withdrawal",
		"layer", "application",
		"request_id", requestID,
		"pool_id", request.PoolID,
		"state", string(target),
		"votes_for", tally.VotesFor,
		"votes_against", tally.VotesAgainst,
		"quorum", tally.Quorum,
	)
	return result, nil
}

// settledResult reports an already-terminal request and re-runs its side
// effects. The transition is durable before the effects, so a crash or
// downstream failure between the two leaves a settled request whose penalty
// and outbox rows are still owed; re-running here pays that debt.
func (uc WithdrawalUseCase) settledResult(ctx context.Context, request entities.WithdrawalRequest, tally entities.Tally) (ResolveResult, error) {
	result := ResolveResult{Request: request, Tally: tally}
	if request.State == entities.StateExecuted {
		split := payout.Compute(request.Amount, uc.penaltyRate())
		result.Split = &split
	}
	if err := uc.terminalEffects(ctx, request, result.Split); err != nil {
		return ResolveResult{}, err
	}
	return result, nil
}

func (uc WithdrawalUseCase) terminalEffects(ctx context.Context, request entities.WithdrawalRequest, split *payout.Split) error {
	occurredAt := uc.now()
	if request.ResolvedAt != nil {
		occurredAt = *request.ResolvedAt
	}

	switch request.State {
	case entities.StateExecuted:
		if uc.Reputation != nil {
			if err := uc.Reputation.ApplyEmergencyPenalty(ctx, request.RequestID, request.Requester, request.PoolID); err != nil {
				application.ResolveLogger(uc.Logger).Error("emergency reputation penalty failed",
					"event", "withdrawal_reputation_penalty_failed",
					"module", "pool-governance/emergency-withdrawal",
					"layer", "application",
					"request_id", request.RequestID,
					"requester", request.Requester,
					"error", err.Error(),
				)
				return err
			}
		}
		if err := uc.appendResolutionEvent(ctx, "withdrawal.executed", request, occurredAt, map[string]any{
			"amount":     split.Gross.String(),
			"penalty":    split.Penalty.String(),
			"net_payout": split.Net.String(),
		}); err != nil {
			return err
		}
		// The fund-movement executor consumes this record; the subsystem
		// only authorizes and computes the amount.
		return uc.appendResolutionEvent(ctx, "fund.transfer.requested", request, occurredAt, map[string]any{
			"recipient":  request.Requester,
			"net_payout": split.Net.String(),
		})
	case entities.StateRejected:
		return uc.appendResolutionEvent(ctx, "withdrawal.rejected", request, occurredAt, nil)
	case entities.StateExpired:
		return uc.appendResolutionEvent(ctx, "withdrawal.expired", request, occurredAt, nil)
	}
	return nil
}

func (uc WithdrawalUseCase) penaltyRate() decimal.Decimal {
	if uc.PenaltyRate.IsZero() || uc.PenaltyRate.IsNegative() {
		return payout.DefaultPenaltyRate
	}
	return uc.PenaltyRate
}
