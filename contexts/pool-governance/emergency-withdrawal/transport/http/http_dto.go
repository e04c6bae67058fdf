package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateWithdrawalRequest struct {
	Requester string `json:"requester"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

type CastVoteRequest struct {
	Voter   string `json:"voter"`
	Support bool   `json:"support"`
}

type WithdrawalRequestDTO struct {
	RequestID      string `json:"request_id"`
	PoolID         string `json:"pool_id"`
	Requester      string `json:"requester"`
	Amount         string `json:"amount"`
	Reason         string `json:"reason"`
	State          string `json:"state"`
	CreatedAt      string `json:"created_at"`
	VotingDeadline string `json:"voting_deadline"`
	ResolvedAt     string `json:"resolved_at,omitempty"`
}

type TallyDTO struct {
	VotesFor       int `json:"votes_for"`
	VotesAgainst   int `json:"votes_against"`
	EligibleVoters int `json:"eligible_voters"`
	Quorum         int `json:"quorum"`
}

type PayoutDTO struct {
	Gross   string `json:"gross"`
	Penalty string `json:"penalty"`
	Net     string `json:"net_payout"`
}

type CreateWithdrawalResponse struct {
	Request WithdrawalRequestDTO `json:"request"`
}

type CastVoteResponse struct {
	RequestID string   `json:"request_id"`
	Voter     string   `json:"voter"`
	Support   bool     `json:"support"`
	Switched  bool     `json:"switched"`
	Tally     TallyDTO `json:"tally"`
}

type ResolveResponse struct {
	Request      WithdrawalRequestDTO `json:"request"`
	Tally        TallyDTO             `json:"tally"`
	Transitioned bool                 `json:"transitioned"`
	Payout       *PayoutDTO           `json:"payout,omitempty"`
}

type WithdrawalStatusResponse struct {
	Request WithdrawalRequestDTO `json:"request"`
	Tally   TallyDTO             `json:"tally"`
}

type ListWithdrawalsResponse struct {
	Items []WithdrawalStatusResponse `json:"items"`
}
