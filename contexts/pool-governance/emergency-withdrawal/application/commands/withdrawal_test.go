package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tontine/contexts/pool-governance/emergency-withdrawal/adapters/memory"
	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// countingReputation mirrors the production bridge: deltas key by request
// ID, so repeated calls for one request count as one applied penalty.
type countingReputation struct {
	requests map[string]int
	wallets  []string
}

func (r *countingReputation) ApplyEmergencyPenalty(_ context.Context, requestID string, wallet string, _ string) error {
	if r.requests == nil {
		r.requests = make(map[string]int)
	}
	r.requests[requestID]++
	r.wallets = append(r.wallets, wallet)
	return nil
}

// flakyReputation fails the first n calls, then succeeds.
type flakyReputation struct {
	failures int
	calls    int
}

func (r *flakyReputation) ApplyEmergencyPenalty(_ context.Context, _ string, _ string, _ string) error {
	r.calls++
	if r.failures > 0 {
		r.failures--
		return errors.New("reputation ledger unavailable")
	}
	return nil
}

func newFixture(t *testing.T, members ...string) (WithdrawalUseCase, *memory.Store, *fixedClock, *countingReputation) {
	t.Helper()
	store := memory.NewStore()
	store.SetPoolMembers("pool-1", members)
	clock := &fixedClock{now: time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)}
	reputation := &countingReputation{}
	uc := WithdrawalUseCase{
		Requests:   store,
		Votes:      store,
		Membership: store,
		Reputation: reputation,
		Outbox:     store,
		Clock:      clock,
		IDGen:      store,
	}
	return uc, store, clock, reputation
}

func createRequest(t *testing.T, uc WithdrawalUseCase, requester string, amount string) entities.WithdrawalRequest {
	t.Helper()
	request, err := uc.CreateRequest(context.Background(), CreateRequestCommand{
		PoolID:    "pool-1",
		Requester: requester,
		Amount:    decimal.RequireFromString(amount),
		Reason:    "urgent medical expenses this week",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return request
}

func TestCreateRequestOpensVotingWindow(t *testing.T) {
	uc, _, clock, _ := newFixture(t, "alice", "bob", "carol")

	request := createRequest(t, uc, "alice", "100")
	if request.State != entities.StateVoting {
		t.Fatalf("state = %q, want voting", request.State)
	}
	wantDeadline := clock.now.Add(48 * time.Hour)
	if !request.VotingDeadline.Equal(wantDeadline) {
		t.Fatalf("deadline = %s, want %s", request.VotingDeadline, wantDeadline)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	uc, _, _, _ := newFixture(t, "alice", "bob", "carol")

	_, err := uc.CreateRequest(context.Background(), CreateRequestCommand{
		PoolID:    "pool-1",
		Requester: "alice",
		Amount:    decimal.Zero,
		Reason:    "urgent medical expenses this week",
	})
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}

	_, err = uc.CreateRequest(context.Background(), CreateRequestCommand{
		PoolID:    "pool-1",
		Requester: "alice",
		Amount:    decimal.RequireFromString("-5"),
		Reason:    "urgent medical expenses this week",
	})
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v, want ErrInvalidAmount", err)
	}

	_, err = uc.CreateRequest(context.Background(), CreateRequestCommand{
		PoolID:    "pool-1",
		Requester: "alice",
		Amount:    decimal.RequireFromString("10"),
		Reason:    "too short",
	})
	if !errors.Is(err, domainerrors.ErrInvalidReason) {
		t.Fatalf("short reason: got %v, want ErrInvalidReason", err)
	}

	_, err = uc.CreateRequest(context.Background(), CreateRequestCommand{
		PoolID:    "pool-1",
		Requester: "alice",
		Amount:    decimal.RequireFromString("10"),
		Reason:    strings.Repeat("x", 501),
	})
	if !errors.Is(err, domainerrors.ErrInvalidReason) {
		t.Fatalf("long reason: got %v, want ErrInvalidReason", err)
	}

	_, err = uc.CreateRequest(context.Background(), CreateRequestCommand{
		PoolID:    "pool-1",
		Requester: "mallory",
		Amount:    decimal.RequireFromString("10"),
		Reason:    "urgent medical expenses this week",
	})
	if !errors.Is(err, domainerrors.ErrNotPoolMember) {
		t.Fatalf("outsider: got %v, want ErrNotPoolMember", err)
	}

	_, err = uc.CreateRequest(context.Background(), CreateRequestCommand{
		PoolID:    "pool-404",
		Requester: "alice",
		Amount:    decimal.RequireFromString("10"),
		Reason:    "urgent medical expenses this week",
	})
	if !errors.Is(err, domainerrors.ErrPoolNotFound) {
		t.Fatalf("missing pool: got %v, want ErrPoolNotFound", err)
	}
}

func TestCastVoteRejectsRequester(t *testing.T) {
	uc, _, _, _ := newFixture(t, "alice", "bob", "carol")
	request := createRequest(t, uc, "alice", "100")

	_, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "alice",
		Support:   true,
	})
	if !errors.Is(err, domainerrors.ErrSelfVoteForbidden) {
		t.Fatalf("got %v, want ErrSelfVoteForbidden", err)
	}
}

func TestCastVoteRejectsNonMemberAndDuplicate(t *testing.T) {
	uc, _, _, _ := newFixture(t, "alice", "bob", "carol")
	request := createRequest(t, uc, "alice", "100")

	_, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "mallory",
		Support:   true,
	})
	if !errors.Is(err, domainerrors.ErrNotPoolMember) {
		t.Fatalf("outsider vote: got %v, want ErrNotPoolMember", err)
	}

	if _, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "bob",
		Support:   true,
	}); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	_, err = uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "bob",
		Support:   true,
	})
	if !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("same vote again: got %v, want ErrDuplicateVote", err)
	}
}

func TestCastVoteSwitchCountedOnce(t *testing.T) {
	uc, _, _, _ := newFixture(t, "alice", "bob", "carol", "dave", "erin")
	request := createRequest(t, uc, "alice", "100")

	if _, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "bob",
		Support:   true,
	}); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	result, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "bob",
		Support:   false,
	})
	if err != nil {
		t.Fatalf("switch vote: %v", err)
	}
	if !result.Switched {
		t.Fatalf("expected switched result")
	}
	if result.Tally.VotesFor != 0 || result.Tally.VotesAgainst != 1 {
		t.Fatalf("after switch tally for=%d against=%d, want 0/1", result.Tally.VotesFor, result.Tally.VotesAgainst)
	}
}

func TestCastVoteClosedAfterDeadline(t *testing.T) {
	uc, _, clock, _ := newFixture(t, "alice", "bob", "carol")
	request := createRequest(t, uc, "alice", "100")

	clock.Advance(48*time.Hour + time.Minute)
	_, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "bob",
		Support:   true,
	})
	if !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("got %v, want ErrVotingClosed", err)
	}
}

func TestResolveApprovalAppliesSinglePenalty(t *testing.T) {
	// 5 members, 4 eligible voters, quorum 2.
	uc, _, _, reputation := newFixture(t, "alice", "bob", "carol", "dave", "erin")
	request := createRequest(t, uc, "alice", "200")

	for _, voter := range []string{"bob", "carol"} {
		if _, err := uc.CastVote(context.Background(), CastVoteCommand{
			RequestID: request.RequestID,
			Voter:     voter,
			Support:   true,
		}); err != nil {
			t.Fatalf("vote %s: %v", voter, err)
		}
	}

	result, err := uc.Resolve(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !result.Transitioned {
		t.Fatalf("expected winning transition")
	}
	if result.Request.State != entities.StateExecuted {
		t.Fatalf("state = %q, want executed", result.Request.State)
	}
	if result.Split == nil {
		t.Fatalf("expected payout split on execution")
	}
	if !result.Split.Penalty.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("penalty = %s, want 20", result.Split.Penalty)
	}
	if !result.Split.Net.Equal(decimal.RequireFromString("180")) {
		t.Fatalf("net = %s, want 180", result.Split.Net)
	}
	if len(reputation.requests) != 1 || reputation.requests[request.RequestID] == 0 {
		t.Fatalf("penalty keyed requests = %v, want exactly %q", reputation.requests, request.RequestID)
	}
	if len(reputation.wallets) == 0 || reputation.wallets[0] != "alice" {
		t.Fatalf("penalty wallets = %v, want requester alice", reputation.wallets)
	}

	// Second resolve settles without transitioning; effects stay keyed to
	// the same request so nothing applies twice.
	again, err := uc.Resolve(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.Transitioned {
		t.Fatalf("second resolve must not transition")
	}
	if again.Request.State != entities.StateExecuted {
		t.Fatalf("second resolve state = %q, want executed", again.Request.State)
	}
	if len(reputation.requests) != 1 {
		t.Fatalf("second resolve keyed a new penalty, requests=%v", reputation.requests)
	}
}

func TestResolveRetryCompletesExecutedEffects(t *testing.T) {
	// The terminal transition is durable before the side effects run. If
	// the reputation ledger is down for the winning resolve, a later
	// resolve of the already-executed request must deliver the penalty and
	// the outbox rows instead of returning a bare read.
	store := memory.NewStore()
	store.SetPoolMembers("pool-1", []string{"alice", "bob", "carol", "dave", "erin"})
	clock := &fixedClock{now: time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)}
	reputation := &flakyReputation{failures: 1}
	uc := WithdrawalUseCase{
		Requests:   store,
		Votes:      store,
		Membership: store,
		Reputation: reputation,
		Outbox:     store,
		Clock:      clock,
		IDGen:      store,
	}

	request := createRequest(t, uc, "alice", "200")
	for _, voter := range []string{"bob", "carol"} {
		if _, err := uc.CastVote(context.Background(), CastVoteCommand{
			RequestID: request.RequestID,
			Voter:     voter,
			Support:   true,
		}); err != nil {
			t.Fatalf("vote %s: %v", voter, err)
		}
	}

	if _, err := uc.Resolve(context.Background(), request.RequestID); err == nil {
		t.Fatalf("first resolve must surface the ledger failure")
	}
	settled, err := store.GetRequest(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if settled.State != entities.StateExecuted {
		t.Fatalf("state after failed effects = %q, want executed", settled.State)
	}

	result, err := uc.Resolve(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("retry resolve: %v", err)
	}
	if result.Transitioned {
		t.Fatalf("retry must not report a fresh transition")
	}
	if result.Split == nil || !result.Split.Net.Equal(decimal.RequireFromString("180")) {
		t.Fatalf("retry split = %+v, want net 180", result.Split)
	}
	if reputation.calls != 2 {
		t.Fatalf("penalty calls = %d, want failed first then applied", reputation.calls)
	}

	// A third resolve re-appends the same derived rows, never duplicates.
	if _, err := uc.Resolve(context.Background(), request.RequestID); err != nil {
		t.Fatalf("third resolve: %v", err)
	}
	pending, err := store.ListPendingOutbox(context.Background(), 20)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	counts := make(map[string]int)
	for _, message := range pending {
		counts[message.EventType]++
	}
	for _, eventType := range []string{"withdrawal.requested", "withdrawal.executed", "fund.transfer.requested"} {
		if counts[eventType] != 1 {
			t.Fatalf("outbox has %d %q rows, want 1 (all: %v)", counts[eventType], eventType, counts)
		}
	}
}

func TestResolveRejectsWhenQuorumUnreachable(t *testing.T) {
	// 5 members, 4 eligible, quorum 2: 3 votes against leave at most 1 yes.
	uc, _, _, reputation := newFixture(t, "alice", "bob", "carol", "dave", "erin")
	request := createRequest(t, uc, "alice", "200")

	for _, voter := range []string{"bob", "carol", "dave"} {
		if _, err := uc.CastVote(context.Background(), CastVoteCommand{
			RequestID: request.RequestID,
			Voter:     voter,
			Support:   false,
		}); err != nil {
			t.Fatalf("vote %s: %v", voter, err)
		}
	}

	result, err := uc.Resolve(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Request.State != entities.StateRejected {
		t.Fatalf("state = %q, want rejected", result.Request.State)
	}
	if result.Split != nil {
		t.Fatalf("rejected request must not produce a payout")
	}
	if len(reputation.requests) != 0 {
		t.Fatalf("rejection must not touch reputation, requests=%v", reputation.requests)
	}
}

func TestResolveExpiresAfterDeadline(t *testing.T) {
	uc, _, clock, reputation := newFixture(t, "alice", "bob", "carol", "dave", "erin")
	request := createRequest(t, uc, "alice", "200")

	if _, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "bob",
		Support:   true,
	}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	clock.Advance(49 * time.Hour)
	result, err := uc.Resolve(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Request.State != entities.StateExpired {
		t.Fatalf("state = %q, want expired", result.Request.State)
	}
	if len(reputation.requests) != 0 {
		t.Fatalf("expiry must not touch reputation, requests=%v", reputation.requests)
	}
}

func TestResolveBeforeDeadlineWithoutQuorumIsNoop(t *testing.T) {
	uc, _, _, _ := newFixture(t, "alice", "bob", "carol", "dave", "erin")
	request := createRequest(t, uc, "alice", "200")

	if _, err := uc.CastVote(context.Background(), CastVoteCommand{
		RequestID: request.RequestID,
		Voter:     "bob",
		Support:   true,
	}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	result, err := uc.Resolve(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Transitioned {
		t.Fatalf("resolve must not transition while voting is open below quorum")
	}
	if result.Request.State != entities.StateVoting {
		t.Fatalf("state = %q, want voting", result.Request.State)
	}
}

func TestResolveApprovalWinsOverLateDeadline(t *testing.T) {
	// Quorum reached before expiry evaluation: approval takes precedence.
	uc, _, clock, _ := newFixture(t, "alice", "bob", "carol")
	request := createRequest(t, uc, "alice", "50")

	for _, voter := range []string{"bob", "carol"} {
		if _, err := uc.CastVote(context.Background(), CastVoteCommand{
			RequestID: request.RequestID,
			Voter:     voter,
			Support:   true,
		}); err != nil {
			t.Fatalf("vote %s: %v", voter, err)
		}
	}

	clock.Advance(72 * time.Hour)
	result, err := uc.Resolve(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Request.State != entities.StateExecuted {
		t.Fatalf("state = %q, want executed", result.Request.State)
	}
}
