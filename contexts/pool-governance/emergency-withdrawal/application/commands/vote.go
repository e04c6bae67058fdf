package commands

import (
	"context"
	"strings"

	application "tontine/contexts/pool-governance/emergency-withdrawal/application"
	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
)

type CastVoteCommand struct {
	RequestID string
	Voter     string
	Support   bool
}

type CastVoteResult struct {
	Vote     entities.Vote
	Tally    entities.Tally
	Switched bool
}

// CastVote records or switches a member's vote while the request is in
// voting. A switch replaces the old row in one repository transaction so
// tallies derived from the vote set never count the voter twice or not at
// all.
func (uc WithdrawalUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	voter := strings.TrimSpace(cmd.Voter)
	if requestID == "" || voter == "" {
		return CastVoteResult{}, domainerrors.ErrInvalidInput
	}

	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return CastVoteResult{}, err
	}
	now := uc.now()
	if request.State.Terminal() || now.After(request.VotingDeadline) {
		return CastVoteResult{}, domainerrors.ErrVotingClosed
	}
	if strings.EqualFold(voter, request.Requester) {
		return CastVoteResult{}, domainerrors.ErrSelfVoteForbidden
	}

	members, err := uc.poolMembers(ctx, request.PoolID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !containsMember(members, voter) {
		return CastVoteResult{}, domainerrors.ErrNotPoolMember
	}

	vote := entities.Vote{
		RequestID: requestID,
		Voter:     voter,
		Support:   cmd.Support,
		CastAt:    now,
	}
	switched := false
	existing, found, err := uc.Votes.GetVote(ctx, requestID, voter)
	if err != nil {
		return CastVoteResult{}, err
	}
	switch {
	case found && existing.Support == cmd.Support:
		return CastVoteResult{}, domainerrors.ErrDuplicateVote
	case found:
		if err := uc.Votes.SwitchVote(ctx, vote); err != nil {
			return CastVoteResult{}, err
		}
		switched = true
	default:
		if err := uc.Votes.InsertVote(ctx, vote); err != nil {
			return CastVoteResult{}, err
		}
	}

	votes, err := uc.Votes.ListVotesByRequest(ctx, requestID)
	if err != nil {
		return CastVoteResult{}, err
	}
	tally := entities.TallyVotes(votes, len(members)-1)

	eventType := "withdrawal.vote.cast"
	if switched {
		eventType = "withdrawal.vote.switched"
	}
	if err := uc.appendActivityEvent(ctx, eventType, request, now, map[string]any{
		"voter":         voter,
		"support":       cmd.Support,
		"votes_for":     tally.VotesFor,
		"votes_against": tally.VotesAgainst,
	}); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("withdrawal vote recorded",
		"event", "withdrawal_vote_recorded",
		"module", "pool-governance/emergency-withdrawal",
		"layer", "application",
		"request_id", requestID,
		"voter", voter,
		"support", cmd.Support,
		"switched", switched,
		"votes_for", tally.VotesFor,
		"votes_against", tally.VotesAgainst,
	)
	return CastVoteResult{Vote: vote, Tally: tally, Switched: switched}, nil
}
