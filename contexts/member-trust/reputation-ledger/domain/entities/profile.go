package entities

import (
	"strings"
	"time"
)

type ActionType string

const (
	ActionOnTimePayment        ActionType = "on_time_payment"
	ActionLatePayment          ActionType = "late_payment"
	ActionMissedPayment        ActionType = "missed_payment"
	ActionCompletedGroup       ActionType = "completed_group"
	ActionEmergencyUsed        ActionType = "emergency_used"
	ActionGroupJoined          ActionType = "group_joined"
	ActionContributionRecorded ActionType = "contribution_recorded"
)

const (
	BaseScore = 50
	MinScore  = 0
	MaxScore  = 100
)

// scoreDeltas is the fixed scoring table. Zero-delta actions still append
// an event and move counters; only the score stays put.
var scoreDeltas = map[ActionType]int{
	ActionOnTimePayment:        5,
	ActionLatePayment:          -2,
	ActionMissedPayment:        -5,
	ActionCompletedGroup:       10,
	ActionEmergencyUsed:        -5,
	ActionGroupJoined:          0,
	ActionContributionRecorded: 0,
}

func DeltaFor(action ActionType) (int, bool) {
	delta, ok := scoreDeltas[action]
	return delta, ok
}

func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

type MemberProfile struct {
	Wallet             string
	Score              int
	Version            int64
	TotalGroupsJoined  int
	ActiveGroups       int
	CompletedGroups    int
	TotalContributions int
	OnTimePayments     int
	LatePayments       int
	MissedPayments     int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewProfile(wallet string, now time.Time) MemberProfile {
	return MemberProfile{
		Wallet:    strings.TrimSpace(wallet),
		Score:     BaseScore,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// ApplyAction moves the score by the action's delta (clamped) and updates
// the lifetime counters. It returns the nominal delta from the table, not
// the clamped movement.
func (p *MemberProfile) ApplyAction(action ActionType, now time.Time) int {
	delta, ok := scoreDeltas[action]
	if !ok {
		return 0
	}
	p.Score = ClampScore(p.Score + delta)
	switch action {
	case ActionOnTimePayment:
		p.OnTimePayments++
	case ActionLatePayment:
		p.LatePayments++
	case ActionMissedPayment:
		p.MissedPayments++
	case ActionCompletedGroup:
		p.CompletedGroups++
		if p.ActiveGroups > 0 {
			p.ActiveGroups--
		}
	case ActionGroupJoined:
		p.TotalGroupsJoined++
		p.ActiveGroups++
	case ActionContributionRecorded:
		p.TotalContributions++
	}
	p.UpdatedAt = now.UTC()
	return delta
}

// Reliability is the lifetime on-time payment ratio. It is derived at read
// time and never stored.
func (p MemberProfile) Reliability() float64 {
	total := p.OnTimePayments + p.LatePayments + p.MissedPayments
	if total == 0 {
		return 1.0
	}
	return float64(p.OnTimePayments) / float64(total)
}

// ReputationEvent is one append-only ledger row. Sequence equals the
// profile version the event produced.
type ReputationEvent struct {
	EventID       string
	Wallet        string
	PoolID        string
	Action        ActionType
	PointsChange  int
	PreviousScore int
	NewScore      int
	Sequence      int64
	CreatedAt     time.Time
}

// ReplayScore folds the ordered event history from the base score with the
// same clamping Apply uses. An empty history yields the base score.
func ReplayScore(events []ReputationEvent) int {
	score := BaseScore
	for _, event := range events {
		delta, ok := scoreDeltas[event.Action]
		if !ok {
			continue
		}
		score = ClampScore(score + delta)
	}
	return score
}
