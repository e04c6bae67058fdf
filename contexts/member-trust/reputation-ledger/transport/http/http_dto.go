package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ApplyReputationRequest struct {
	ActionType string `json:"action_type"`
	PoolID     string `json:"pool_id"`
}

type MemberProfileDTO struct {
	Wallet             string  `json:"wallet"`
	Score              int     `json:"score"`
	Version            int64   `json:"version"`
	TotalGroupsJoined  int     `json:"total_groups_joined"`
	ActiveGroups       int     `json:"active_groups"`
	CompletedGroups    int     `json:"completed_groups"`
	TotalContributions int     `json:"total_contributions"`
	OnTimePayments     int     `json:"on_time_payments"`
	LatePayments       int     `json:"late_payments"`
	MissedPayments     int     `json:"missed_payments"`
	Reliability        float64 `json:"reliability"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

type ReputationEventDTO struct {
	EventID       string `json:"event_id"`
	Wallet        string `json:"wallet"`
	PoolID        string `json:"pool_id,omitempty"`
	ActionType    string `json:"action_type"`
	PointsChange  int    `json:"points_change"`
	PreviousScore int    `json:"previous_score"`
	NewScore      int    `json:"new_score"`
	Sequence      int64  `json:"sequence"`
	CreatedAt     string `json:"created_at"`
}

type ApplyReputationResponse struct {
	Profile  MemberProfileDTO   `json:"profile"`
	Event    ReputationEventDTO `json:"event"`
	Replayed bool               `json:"replayed"`
}

type GetProfileResponse struct {
	Profile MemberProfileDTO `json:"profile"`
}

type ListEventsResponse struct {
	Items []ReputationEventDTO `json:"items"`
}

type ReplayResponse struct {
	Wallet          string `json:"wallet"`
	StoredScore     int    `json:"stored_score"`
	RecomputedScore int    `json:"recomputed_score"`
	EventCount      int    `json:"event_count"`
	Diverged        bool   `json:"diverged"`
}
