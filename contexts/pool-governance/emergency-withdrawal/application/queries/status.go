package queries

import (
	"context"
	"strings"

	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
	"tontine/contexts/pool-governance/emergency-withdrawal/ports"
)

type RequestStatus struct {
	Request entities.WithdrawalRequest
	Tally   entities.Tally
}

// StatusUseCase serves read models; tallies are always derived from the
// current vote rows, never from a stored counter.
type StatusUseCase struct {
	Requests   ports.RequestRepository
	Votes      ports.VoteRepository
	Membership ports.MembershipProvider
}

func (uc StatusUseCase) GetRequest(ctx context.Context, requestID string) (RequestStatus, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return RequestStatus{}, domainerrors.ErrInvalidInput
	}
	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return RequestStatus{}, err
	}
	tally, err := uc.tallyFor(ctx, request)
	if err != nil {
		return RequestStatus{}, err
	}
	return RequestStatus{Request: request, Tally: tally}, nil
}

func (uc StatusUseCase) ListByPool(ctx context.Context, poolID string) ([]RequestStatus, error) {
	poolID = strings.TrimSpace(poolID)
	if poolID == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	requests, err := uc.Requests.ListRequestsByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	items := make([]RequestStatus, 0, len(requests))
	for _, request := range requests {
		tally, err := uc.tallyFor(ctx, request)
		if err != nil {
			return nil, err
		}
		items = append(items, RequestStatus{Request: request, Tally: tally})
	}
	return items, nil
}

func (uc StatusUseCase) tallyFor(ctx context.Context, request entities.WithdrawalRequest) (entities.Tally, error) {
	members, err := uc.Membership.PoolMembers(ctx, request.PoolID)
	if err != nil {
		return entities.Tally{}, domainerrors.ErrMembershipUnavailable
	}
	votes, err := uc.Votes.ListVotesByRequest(ctx, request.RequestID)
	if err != nil {
		return entities.Tally{}, err
	}
	return entities.TallyVotes(votes, len(members)-1), nil
}
