package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tontine/contexts/member-trust/reputation-ledger/adapters/memory"
	"tontine/contexts/member-trust/reputation-ledger/domain/entities"
	domainerrors "tontine/contexts/member-trust/reputation-ledger/domain/errors"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	service := Service{
		Repo:        store,
		Idempotency: store,
		Outbox:      store,
		Clock:       fixedClock{now: time.Date(2026, time.July, 3, 14, 0, 0, 0, time.UTC)},
		IDGen:       store,
	}
	return service, store
}

func TestApplyBootstrapsAtBaseScore(t *testing.T) {
	service, _ := newService(t)

	result, err := service.Apply(context.Background(), "key-1", ApplyInput{
		Wallet: "0xAbC",
		Action: entities.ActionOnTimePayment,
		PoolID: "pool-1",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Profile.Score != entities.BaseScore+5 {
		t.Fatalf("score = %d, want %d", result.Profile.Score, entities.BaseScore+5)
	}
	if result.Event.PreviousScore != entities.BaseScore {
		t.Fatalf("previous score = %d, want base %d", result.Event.PreviousScore, entities.BaseScore)
	}
	if result.Event.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", result.Event.Sequence)
	}
	if result.Profile.OnTimePayments != 1 {
		t.Fatalf("on-time counter = %d, want 1", result.Profile.OnTimePayments)
	}
}

func TestApplyUnknownActionRejected(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Apply(context.Background(), "key-1", ApplyInput{
		Wallet: "0xAbC",
		Action: "telepathy",
	})
	if !errors.Is(err, domainerrors.ErrUnknownAction) {
		t.Fatalf("got %v, want ErrUnknownAction", err)
	}
}

func TestApplyRequiresIdempotencyKey(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Apply(context.Background(), "  ", ApplyInput{
		Wallet: "0xAbC",
		Action: entities.ActionOnTimePayment,
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyMissing) {
		t.Fatalf("got %v, want ErrIdempotencyKeyMissing", err)
	}
}

func TestApplyReplaysOnSameKey(t *testing.T) {
	service, store := newService(t)

	first, err := service.Apply(context.Background(), "key-1", ApplyInput{
		Wallet: "0xAbC",
		Action: entities.ActionLatePayment,
		PoolID: "pool-1",
	})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}

	second, err := service.Apply(context.Background(), "key-1", ApplyInput{
		Wallet: "0xAbC",
		Action: entities.ActionLatePayment,
		PoolID: "pool-1",
	})
	if err != nil {
		t.Fatalf("replayed apply: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed result")
	}
	if second.Profile.Score != first.Profile.Score {
		t.Fatalf("replay changed score %d -> %d", first.Profile.Score, second.Profile.Score)
	}

	events, err := store.ListEvents(context.Background(), "0xAbC")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("replay appended events, count=%d want 1", len(events))
	}
}

func TestApplySameKeyDifferentPayloadConflicts(t *testing.T) {
	service, _ := newService(t)

	if _, err := service.Apply(context.Background(), "key-1", ApplyInput{
		Wallet: "0xAbC",
		Action: entities.ActionLatePayment,
	}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	_, err := service.Apply(context.Background(), "key-1", ApplyInput{
		Wallet: "0xAbC",
		Action: entities.ActionOnTimePayment,
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("got %v, want ErrIdempotencyConflict", err)
	}
}

func TestApplyClampsAtFloor(t *testing.T) {
	service, _ := newService(t)

	var last int
	for i := 0; i < 20; i++ {
		result, err := service.Apply(context.Background(), fmt.Sprintf("key-%d", i), ApplyInput{
			Wallet: "0xAbC",
			Action: entities.ActionMissedPayment,
		})
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		last = result.Profile.Score
	}
	if last != entities.MinScore {
		t.Fatalf("score = %d, want floor %d", last, entities.MinScore)
	}
}

func TestConcurrentAppliesSerialize(t *testing.T) {
	service, store := newService(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := service.Apply(context.Background(), fmt.Sprintf("key-%d", n), ApplyInput{
				Wallet: "0xAbC",
				Action: entities.ActionOnTimePayment,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	applied := 0
	for err := range errs {
		if err == nil {
			applied++
			continue
		}
		if !errors.Is(err, domainerrors.ErrConcurrentUpdate) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if applied == 0 {
		t.Fatalf("no apply succeeded under contention")
	}

	profile, exists, err := store.GetProfile(context.Background(), "0xAbC")
	if err != nil || !exists {
		t.Fatalf("get profile exists=%v err=%v", exists, err)
	}
	events, err := store.ListEvents(context.Background(), "0xAbC")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != applied {
		t.Fatalf("event count %d != successful applies %d", len(events), applied)
	}
	if profile.Version != int64(applied) {
		t.Fatalf("version %d != successful applies %d", profile.Version, applied)
	}
	if got := entities.ReplayScore(events); got != profile.Score {
		t.Fatalf("replayed %d != stored %d after contention", got, profile.Score)
	}
}

func TestReplayMatchesStoredScore(t *testing.T) {
	service, _ := newService(t)

	actions := []entities.ActionType{
		entities.ActionOnTimePayment,
		entities.ActionOnTimePayment,
		entities.ActionLatePayment,
		entities.ActionCompletedGroup,
		entities.ActionEmergencyUsed,
	}
	for i, action := range actions {
		if _, err := service.Apply(context.Background(), fmt.Sprintf("key-%d", i), ApplyInput{
			Wallet: "0xAbC",
			Action: action,
		}); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	result, err := service.Replay(context.Background(), "0xAbC")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Diverged {
		t.Fatalf("stored %d diverged from recomputed %d", result.StoredScore, result.RecomputedScore)
	}
	if result.EventCount != len(actions) {
		t.Fatalf("event count = %d, want %d", result.EventCount, len(actions))
	}
	// 50 +5 +5 -2 +10 -5 = 63.
	if result.StoredScore != 63 {
		t.Fatalf("stored score = %d, want 63", result.StoredScore)
	}
}

func TestReplayUnknownWallet(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Replay(context.Background(), "0xNobody")
	if !errors.Is(err, domainerrors.ErrProfileNotFound) {
		t.Fatalf("got %v, want ErrProfileNotFound", err)
	}
}

func TestGetProfileUnknownWallet(t *testing.T) {
	service, _ := newService(t)

	_, err := service.GetProfile(context.Background(), "0xNobody")
	if !errors.Is(err, domainerrors.ErrProfileNotFound) {
		t.Fatalf("got %v, want ErrProfileNotFound", err)
	}
}
