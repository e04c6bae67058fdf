package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tontine/contexts/member-trust/reputation-ledger/domain/entities"
	domainerrors "tontine/contexts/member-trust/reputation-ledger/domain/errors"
	"tontine/contexts/member-trust/reputation-ledger/ports"
)

const defaultRetryBudget = 3

type Service struct {
	Repo           ports.ProfileRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	RetryBudget    int
	Logger         *slog.Logger
}

type ApplyInput struct {
	Wallet string
	Action entities.ActionType
	PoolID string
}

type ApplyResult struct {
	Profile  entities.MemberProfile
	Event    entities.ReputationEvent
	Replayed bool
}

type ReplayResult struct {
	Wallet          string
	StoredScore     int
	RecomputedScore int
	EventCount      int
	Diverged        bool
}

// Apply appends one reputation event and updates the profile projection
// under an optimistic version check. Payment events arrive over at-least-
// once delivery, so callers pass an idempotency key and replays return the
// stored response instead of moving the score twice.
func (s Service) Apply(ctx context.Context, idempotencyKey string, input ApplyInput) (ApplyResult, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return ApplyResult{}, domainerrors.ErrIdempotencyKeyMissing
	}
	wallet := strings.TrimSpace(input.Wallet)
	poolID := strings.TrimSpace(input.PoolID)
	if wallet == "" {
		return ApplyResult{}, domainerrors.ErrInvalidInput
	}
	delta, known := entities.DeltaFor(input.Action)
	if !known {
		return ApplyResult{}, domainerrors.ErrUnknownAction
	}

	now := s.now()
	requestHash := hashPayload(map[string]any{
		"wallet":       strings.ToLower(wallet),
		"action_type":  string(input.Action),
		"pool_id":      poolID,
		"request_type": "apply_reputation",
	})

	record, found, err := s.Idempotency.GetRecord(ctx, strings.TrimSpace(idempotencyKey), now)
	if err != nil {
		return ApplyResult{}, err
	}
	if found {
		if record.RequestHash != requestHash {
			return ApplyResult{}, domainerrors.ErrIdempotencyConflict
		}
		var replayed ApplyResult
		if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
			return ApplyResult{}, err
		}
		replayed.Replayed = true
		return replayed, nil
	}

	var result ApplyResult
	budget := s.retryBudget()
	for attempt := 0; ; attempt++ {
		profile, exists, err := s.Repo.GetProfile(ctx, wallet)
		if err != nil {
			return ApplyResult{}, err
		}
		var expectedVersion int64
		if exists {
			expectedVersion = profile.Version
		} else {
			profile = entities.NewProfile(wallet, now)
		}

		previousScore := profile.Score
		profile.ApplyAction(input.Action, now)
		profile.Version++

		eventID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return ApplyResult{}, err
		}
		event := entities.ReputationEvent{
			EventID:       strings.TrimSpace(eventID),
			Wallet:        wallet,
			PoolID:        poolID,
			Action:        input.Action,
			PointsChange:  delta,
			PreviousScore: previousScore,
			NewScore:      profile.Score,
			Sequence:      profile.Version,
			CreatedAt:     now,
		}

		err = s.Repo.AppendEvent(ctx, event, profile, expectedVersion)
		if err == nil {
			result = ApplyResult{Profile: profile, Event: event}
			break
		}
		if !errors.Is(err, domainerrors.ErrVersionConflict) {
			return ApplyResult{}, err
		}
		if attempt+1 >= budget {
			resolveLogger(s.Logger).Warn("reputation apply retries exhausted",
				"event", "reputation_apply_retries_exhausted",
				"module", "member-trust/reputation-ledger",
				"layer", "application",
				"wallet", wallet,
				"action_type", string(input.Action),
				"attempts", budget,
			)
			return ApplyResult{}, domainerrors.ErrConcurrentUpdate
		}
	}

	if err := s.appendActivityEvent(ctx, result, now); err != nil {
		return ApplyResult{}, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return ApplyResult{}, err
	}
	if err := s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             strings.TrimSpace(idempotencyKey),
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(s.idempotencyTTL()),
	}); err != nil {
		return ApplyResult{}, err
	}

	resolveLogger(s.Logger).Info("reputation event applied",
		"event", "reputation_event_applied",
		"module", "member-trust/reputation-ledger",
		"layer", "application",
		"wallet", wallet,
		"action_type", string(input.Action),
		"points_change", delta,
		"new_score", result.Profile.Score,
		"sequence", result.Event.Sequence,
	)
	return result, nil
}

// Replay recomputes the score from the ordered event history and reports
// it next to the stored projection so divergence is observable.
func (s Service) Replay(ctx context.Context, wallet string) (ReplayResult, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return ReplayResult{}, domainerrors.ErrInvalidInput
	}
	profile, exists, err := s.Repo.GetProfile(ctx, wallet)
	if err != nil {
		return ReplayResult{}, err
	}
	if !exists {
		return ReplayResult{}, domainerrors.ErrProfileNotFound
	}
	events, err := s.Repo.ListEvents(ctx, wallet)
	if err != nil {
		return ReplayResult{}, err
	}
	recomputed := entities.ReplayScore(events)
	result := ReplayResult{
		Wallet:          profile.Wallet,
		StoredScore:     profile.Score,
		RecomputedScore: recomputed,
		EventCount:      len(events),
		Diverged:        recomputed != profile.Score,
	}
	if result.Diverged {
		resolveLogger(s.Logger).Error("reputation replay divergence detected",
			"event", "reputation_replay_diverged",
			"module", "member-trust/reputation-ledger",
			"layer", "application",
			"wallet", wallet,
			"stored_score", result.StoredScore,
			"recomputed_score", result.RecomputedScore,
			"event_count", result.EventCount,
		)
	}
	return result, nil
}

func (s Service) GetProfile(ctx context.Context, wallet string) (entities.MemberProfile, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return entities.MemberProfile{}, domainerrors.ErrInvalidInput
	}
	profile, exists, err := s.Repo.GetProfile(ctx, wallet)
	if err != nil {
		return entities.MemberProfile{}, err
	}
	if !exists {
		return entities.MemberProfile{}, domainerrors.ErrProfileNotFound
	}
	return profile, nil
}

func (s Service) ListEvents(ctx context.Context, wallet string) ([]entities.ReputationEvent, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListEvents(ctx, wallet)
}

func (s Service) appendActivityEvent(ctx context.Context, result ApplyResult, now time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	data, err := json.Marshal(map[string]any{
		"wallet":         result.Profile.Wallet,
		"pool_id":        result.Event.PoolID,
		"action_type":    string(result.Event.Action),
		"points_change":  result.Event.PointsChange,
		"previous_score": result.Event.PreviousScore,
		"new_score":      result.Event.NewScore,
		"sequence":       result.Event.Sequence,
		"occurred_at":    now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          result.Event.EventID,
		EventType:        "reputation.changed",
		OccurredAt:       now,
		SourceService:    "reputation-ledger",
		SchemaVersion:    1,
		PartitionKeyPath: "wallet",
		PartitionKey:     strings.ToLower(result.Profile.Wallet),
		Data:             data,
	})
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.IdempotencyTTL
}

func (s Service) retryBudget() int {
	if s.RetryBudget <= 0 {
		return defaultRetryBudget
	}
	return s.RetryBudget
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func hashPayload(payload map[string]any) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
