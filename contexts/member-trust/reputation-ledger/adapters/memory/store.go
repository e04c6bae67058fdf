package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tontine/contexts/member-trust/reputation-ledger/domain/entities"
	domainerrors "tontine/contexts/member-trust/reputation-ledger/domain/errors"
	"tontine/contexts/member-trust/reputation-ledger/ports"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store keeps the profile projection and the event ledger under one lock,
// so AppendEvent is atomic the same way the postgres transaction is.
type Store struct {
	mu sync.RWMutex

	profiles    map[string]entities.MemberProfile
	events      map[string][]entities.ReputationEvent
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		profiles:    make(map[string]entities.MemberProfile),
		events:      make(map[string][]entities.ReputationEvent),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

func (s *Store) GetProfile(_ context.Context, wallet string) (entities.MemberProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[walletKey(wallet)]
	if !ok {
		return entities.MemberProfile{}, false, nil
	}
	return profile, true, nil
}

func (s *Store) AppendEvent(
	_ context.Context,
	event entities.ReputationEvent,
	profile entities.MemberProfile,
	expectedVersion int64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := walletKey(profile.Wallet)
	current, exists := s.profiles[key]
	if expectedVersion == 0 {
		if exists {
			return domainerrors.ErrVersionConflict
		}
	} else if !exists || current.Version != expectedVersion {
		return domainerrors.ErrVersionConflict
	}

	s.profiles[key] = profile
	s.events[key] = append(s.events[key], event)
	return nil
}

func (s *Store) ListEvents(_ context.Context, wallet string) ([]entities.ReputationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[walletKey(wallet)]
	items := append([]entities.ReputationEvent(nil), events...)
	sort.Slice(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
	return items, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[strings.TrimSpace(record.Key)] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func walletKey(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

var _ ports.ProfileRepository = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
