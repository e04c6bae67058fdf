package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	application "tontine/contexts/pool-governance/emergency-withdrawal/application"
	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
	"tontine/contexts/pool-governance/emergency-withdrawal/ports"
)

// WithdrawalUseCase orchestrates the request/vote/resolve lifecycle:
// validation on creation, one-current-vote-per-member with atomic
// switching, and idempotent terminal resolution.
type WithdrawalUseCase struct {
	Requests     ports.RequestRepository
	Votes        ports.VoteRepository
	Membership   ports.MembershipProvider
	Reputation   ports.ReputationApplier
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	VotingWindow time.Duration
	PenaltyRate  decimal.Decimal
	Logger       *slog.Logger
}

type CreateRequestCommand struct {
	PoolID    string
	Requester string
	Amount    decimal.Decimal
	Reason    string
}

// CreateRequest validates the command, opens the 48h voting window and
// emits a withdrawal.requested activity event.
func (uc WithdrawalUseCase) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (entities.WithdrawalRequest, error) {
	logger := application.ResolveLogger(uc.Logger)
	poolID := strings.TrimSpace(cmd.PoolID)
	requester := strings.TrimSpace(cmd.Requester)
	reason := strings.TrimSpace(cmd.Reason)

	if poolID == "" || requester == "" {
		return entities.WithdrawalRequest{}, domainerrors.ErrInvalidInput
	}
	if !cmd.Amount.IsPositive() {
		logger.Warn("withdrawal request rejected on amount",
			"event", "withdrawal_request_invalid_amount",
			"module", "pool-governance/emergency-withdrawal",
			"layer", "application",
			"pool_id", poolID,
			"requester", requester,
		)
		return entities.WithdrawalRequest{}, domainerrors.ErrInvalidAmount
	}
	if length := utf8.RuneCountInString(reason); length < entities.ReasonMinLength || length > entities.ReasonMaxLength {
		return entities.WithdrawalRequest{}, domainerrors.ErrInvalidReason
	}

	members, err := uc.poolMembers(ctx, poolID)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if !containsMember(members, requester) {
		return entities.WithdrawalRequest{}, domainerrors.ErrNotPoolMember
	}

	requestID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	now := uc.now()
	request := entities.WithdrawalRequest{
		RequestID:      requestID,
		PoolID:         poolID,
		Requester:      requester,
		Amount:         cmd.Amount,
		Reason:         reason,
		State:          entities.StateVoting,
		CreatedAt:      now,
		VotingDeadline: now.Add(uc.votingWindow()),
	}
	if err := uc.Requests.CreateRequest(ctx, request); err != nil {
		return entities.WithdrawalRequest{}, err
	}

	if err := uc.appendActivityEvent(ctx, "withdrawal.requested", request, now, map[string]any{
		"amount": request.Amount.String(),
		"reason": request.Reason,
	}); err != nil {
		return entities.WithdrawalRequest{}, err
	}

	logger.Info("withdrawal request created",
		"event", "withdrawal_request_created",
		"module", "pool-governance/emergency-withdrawal",
		"layer", "application",
		"request_id", request.RequestID,
		"pool_id", request.PoolID,
		"requester", request.Requester,
		"amount", request.Amount.String(),
		"voting_deadline", request.VotingDeadline.Format(time.RFC3339),
	)
	return request, nil
}

func (uc WithdrawalUseCase) poolMembers(ctx context.Context, poolID string) ([]string, error) {
	members, err := uc.Membership.PoolMembers(ctx, poolID)
	if err != nil {
		application.ResolveLogger(uc.Logger).Error("membership lookup failed",
			"event", "withdrawal_membership_lookup_failed",
			"module", "pool-governance/emergency-withdrawal",
			"layer", "application",
			"pool_id", poolID,
			"error", err.Error(),
		)
		return nil, domainerrors.ErrMembershipUnavailable
	}
	if len(members) == 0 {
		return nil, domainerrors.ErrPoolNotFound
	}
	return members, nil
}

func (uc WithdrawalUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc WithdrawalUseCase) votingWindow() time.Duration {
	if uc.VotingWindow <= 0 {
		return 48 * time.Hour
	}
	return uc.VotingWindow
}

func containsMember(members []string, address string) bool {
	for _, member := range members {
		if strings.EqualFold(strings.TrimSpace(member), address) {
			return true
		}
	}
	return false
}
