package entities

import (
	"math/rand"
	"testing"
	"time"
)

var allActions = []ActionType{
	ActionOnTimePayment,
	ActionLatePayment,
	ActionMissedPayment,
	ActionCompletedGroup,
	ActionEmergencyUsed,
	ActionGroupJoined,
	ActionContributionRecorded,
}

func TestDeltaTable(t *testing.T) {
	cases := map[ActionType]int{
		ActionOnTimePayment:        5,
		ActionLatePayment:          -2,
		ActionMissedPayment:        -5,
		ActionCompletedGroup:       10,
		ActionEmergencyUsed:        -5,
		ActionGroupJoined:          0,
		ActionContributionRecorded: 0,
	}
	for action, want := range cases {
		delta, ok := DeltaFor(action)
		if !ok {
			t.Fatalf("action %q missing from delta table", action)
		}
		if delta != want {
			t.Fatalf("delta for %q = %d, want %d", action, delta, want)
		}
	}
	if _, ok := DeltaFor("made_up_action"); ok {
		t.Fatalf("unknown action must not resolve a delta")
	}
}

func TestScoreStaysClampedUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	for run := 0; run < 50; run++ {
		profile := NewProfile("wallet-1", now)
		for i := 0; i < 200; i++ {
			action := allActions[rng.Intn(len(allActions))]
			profile.ApplyAction(action, now)
			if profile.Score < MinScore || profile.Score > MaxScore {
				t.Fatalf("run %d step %d: score %d escaped [%d,%d]", run, i, profile.Score, MinScore, MaxScore)
			}
		}
	}
}

func TestClampAtBounds(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	profile := NewProfile("wallet-1", now)
	for i := 0; i < 30; i++ {
		profile.ApplyAction(ActionCompletedGroup, now)
	}
	if profile.Score != MaxScore {
		t.Fatalf("score = %d, want clamp at %d", profile.Score, MaxScore)
	}

	profile = NewProfile("wallet-2", now)
	for i := 0; i < 30; i++ {
		profile.ApplyAction(ActionMissedPayment, now)
	}
	if profile.Score != MinScore {
		t.Fatalf("score = %d, want clamp at %d", profile.Score, MinScore)
	}
}

func TestApplyActionCounters(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	profile := NewProfile("wallet-1", now)

	profile.ApplyAction(ActionGroupJoined, now)
	profile.ApplyAction(ActionGroupJoined, now)
	profile.ApplyAction(ActionContributionRecorded, now)
	profile.ApplyAction(ActionOnTimePayment, now)
	profile.ApplyAction(ActionLatePayment, now)
	profile.ApplyAction(ActionMissedPayment, now)
	profile.ApplyAction(ActionCompletedGroup, now)

	if profile.TotalGroupsJoined != 2 {
		t.Fatalf("total groups joined = %d, want 2", profile.TotalGroupsJoined)
	}
	if profile.ActiveGroups != 1 {
		t.Fatalf("active groups = %d, want 1 after one completion", profile.ActiveGroups)
	}
	if profile.CompletedGroups != 1 {
		t.Fatalf("completed groups = %d, want 1", profile.CompletedGroups)
	}
	if profile.TotalContributions != 1 {
		t.Fatalf("total contributions = %d, want 1", profile.TotalContributions)
	}
	if profile.OnTimePayments != 1 || profile.LatePayments != 1 || profile.MissedPayments != 1 {
		t.Fatalf("payment counters = %d/%d/%d, want 1/1/1",
			profile.OnTimePayments, profile.LatePayments, profile.MissedPayments)
	}
}

func TestReliability(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	profile := NewProfile("wallet-1", now)
	if profile.Reliability() != 1.0 {
		t.Fatalf("new profile reliability = %f, want 1.0", profile.Reliability())
	}

	profile.OnTimePayments = 3
	profile.LatePayments = 1
	if got := profile.Reliability(); got != 0.75 {
		t.Fatalf("reliability = %f, want 0.75", got)
	}
}

func TestReplayScoreMatchesApply(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	profile := NewProfile("wallet-1", now)
	var events []ReputationEvent
	for i := 0; i < 300; i++ {
		action := allActions[rng.Intn(len(allActions))]
		previous := profile.Score
		delta := profile.ApplyAction(action, now)
		profile.Version++
		events = append(events, ReputationEvent{
			EventID:       "evt",
			Wallet:        profile.Wallet,
			Action:        action,
			PointsChange:  delta,
			PreviousScore: previous,
			NewScore:      profile.Score,
			Sequence:      profile.Version,
			CreatedAt:     now,
		})
	}

	if got := ReplayScore(events); got != profile.Score {
		t.Fatalf("replayed score %d != applied score %d", got, profile.Score)
	}
}

func TestReplayScoreEmptyHistoryIsBase(t *testing.T) {
	if got := ReplayScore(nil); got != BaseScore {
		t.Fatalf("empty replay = %d, want base %d", got, BaseScore)
	}
}
