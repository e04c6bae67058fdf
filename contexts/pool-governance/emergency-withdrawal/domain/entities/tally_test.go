package entities

import (
	"testing"
	"time"
)

func TestQuorumForMajorityOfEligibleVoters(t *testing.T) {
	cases := []struct {
		eligible int
		want     int
	}{
		{eligible: 1, want: 1},
		{eligible: 2, want: 1},
		{eligible: 3, want: 2},
		{eligible: 4, want: 2},
		{eligible: 5, want: 3},
		{eligible: 9, want: 5},
		{eligible: 0, want: 0},
	}
	for _, tc := range cases {
		if got := QuorumFor(tc.eligible); got != tc.want {
			t.Fatalf("QuorumFor(%d) = %d, want %d", tc.eligible, got, tc.want)
		}
	}
}

func TestTallyNeverExceedsEligibleVoters(t *testing.T) {
	votes := []Vote{
		{RequestID: "r1", Voter: "a", Support: true},
		{RequestID: "r1", Voter: "b", Support: true},
		{RequestID: "r1", Voter: "c", Support: false},
		{RequestID: "r1", Voter: "d", Support: true},
	}
	tally := TallyVotes(votes, 4)
	if tally.VotesFor+tally.VotesAgainst > tally.EligibleVoters {
		t.Fatalf("tally %d+%d exceeds eligible %d", tally.VotesFor, tally.VotesAgainst, tally.EligibleVoters)
	}
	if tally.VotesFor != 3 || tally.VotesAgainst != 1 {
		t.Fatalf("unexpected tally for=%d against=%d", tally.VotesFor, tally.VotesAgainst)
	}
}

func TestApprovedAtExactQuorum(t *testing.T) {
	// 5 eligible voters, quorum 3.
	votes := []Vote{
		{Voter: "a", Support: true},
		{Voter: "b", Support: true},
	}
	tally := TallyVotes(votes, 5)
	if tally.Approved() {
		t.Fatalf("2 of quorum %d should not approve", tally.Quorum)
	}
	votes = append(votes, Vote{Voter: "c", Support: true})
	tally = TallyVotes(votes, 5)
	if !tally.Approved() {
		t.Fatalf("expected approval at exact quorum %d", tally.Quorum)
	}
}

func TestQuorumUnreachableWhenRemainingVotesCannotApprove(t *testing.T) {
	// 4 eligible, quorum 2: unreachable once 3 vote against.
	votes := []Vote{
		{Voter: "a", Support: false},
		{Voter: "b", Support: false},
	}
	tally := TallyVotes(votes, 4)
	if tally.QuorumUnreachable() {
		t.Fatalf("2 against of 4 still leaves quorum reachable")
	}
	votes = append(votes, Vote{Voter: "c", Support: false})
	tally = TallyVotes(votes, 4)
	if !tally.QuorumUnreachable() {
		t.Fatalf("3 against of 4 leaves only 1 possible yes, quorum 2 unreachable")
	}
}

func TestTerminalStates(t *testing.T) {
	if StateVoting.Terminal() {
		t.Fatalf("voting must not be terminal")
	}
	for _, state := range []RequestState{StateExecuted, StateRejected, StateExpired} {
		if !state.Terminal() {
			t.Fatalf("state %q must be terminal", state)
		}
	}
}

func TestVoteCastAtOrdering(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	votes := []Vote{
		{Voter: "a", Support: true, CastAt: base.Add(time.Minute)},
		{Voter: "b", Support: false, CastAt: base},
	}
	tally := TallyVotes(votes, 3)
	if tally.VotesFor != 1 || tally.VotesAgainst != 1 {
		t.Fatalf("cast order must not affect counting, got for=%d against=%d", tally.VotesFor, tally.VotesAgainst)
	}
}
