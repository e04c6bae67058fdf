package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestState string

const (
	StateVoting   RequestState = "voting"
	StateExecuted RequestState = "executed"
	StateRejected RequestState = "rejected"
	StateExpired  RequestState = "expired"
)

// Terminal reports whether the state permits no further transitions.
func (s RequestState) Terminal() bool {
	switch s {
	case StateExecuted, StateRejected, StateExpired:
		return true
	default:
		return false
	}
}

const (
	ReasonMinLength = 10
	ReasonMaxLength = 500
)

type WithdrawalRequest struct {
	RequestID      string
	PoolID         string
	Requester      string
	Amount         decimal.Decimal
	Reason         string
	State          RequestState
	CreatedAt      time.Time
	VotingDeadline time.Time
	ResolvedAt     *time.Time
}

type Vote struct {
	RequestID string
	Voter     string
	Support   bool
	CastAt    time.Time
}
