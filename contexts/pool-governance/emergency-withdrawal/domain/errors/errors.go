package errors

import "errors"

var (
	ErrInvalidAmount         = errors.New("withdrawal amount must be positive")
	ErrInvalidReason         = errors.New("withdrawal reason must be between 10 and 500 characters")
	ErrInvalidInput          = errors.New("invalid withdrawal input")
	ErrRequestNotFound       = errors.New("withdrawal request not found")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrNotPoolMember         = errors.New("address is not a member of the pool")
	ErrVotingClosed          = errors.New("voting is closed for this request")
	ErrSelfVoteForbidden     = errors.New("requester cannot vote on their own request")
	ErrDuplicateVote         = errors.New("vote with the same direction already cast")
	ErrVoteNotFound          = errors.New("vote not found")
	ErrConflict              = errors.New("withdrawal state conflict")
	ErrMembershipUnavailable = errors.New("membership provider unavailable")
)
