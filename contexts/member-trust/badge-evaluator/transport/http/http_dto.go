package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BadgeDTO struct {
	BadgeID  string `json:"badge_id"`
	Wallet   string `json:"wallet"`
	Type     string `json:"type"`
	EarnedAt string `json:"earned_at"`
}

type EvaluateResponse struct {
	Wallet    string     `json:"wallet"`
	NewBadges []BadgeDTO `json:"new_badges"`
	Earned    []BadgeDTO `json:"earned"`
}

type ListBadgesResponse struct {
	Items []BadgeDTO `json:"items"`
}
