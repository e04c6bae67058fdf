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

	"tontine/contexts/member-trust/badge-evaluator/domain/entities"
	domainerrors "tontine/contexts/member-trust/badge-evaluator/domain/errors"
	"tontine/contexts/member-trust/badge-evaluator/ports"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type Store struct {
	mu sync.RWMutex

	badges  map[string]map[entities.BadgeType]entities.Badge
	invites map[string]int
	outbox  map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		badges:  make(map[string]map[entities.BadgeType]entities.Badge),
		invites: make(map[string]int),
		outbox:  make(map[string]outboxRecord),
	}
}

// SetInviteStats seeds the invite conversion projection.
func (s *Store) SetInviteStats(wallet string, successfulInvites int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[walletKey(wallet)] = successfulInvites
}

func (s *Store) SuccessfulInvites(_ context.Context, wallet string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invites[walletKey(wallet)], nil
}

func (s *Store) ListBadges(_ context.Context, wallet string) ([]entities.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.badges[walletKey(wallet)]
	items := make([]entities.Badge, 0, len(held))
	for _, badge := range held {
		items = append(items, badge)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].EarnedAt.Equal(items[j].EarnedAt) {
			return items[i].Type < items[j].Type
		}
		return items[i].EarnedAt.Before(items[j].EarnedAt)
	})
	return items, nil
}

func (s *Store) CreateBadge(_ context.Context, badge entities.Badge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := walletKey(badge.Wallet)
	held, ok := s.badges[key]
	if !ok {
		held = make(map[entities.BadgeType]entities.Badge)
		s.badges[key] = held
	}
	if _, exists := held[badge.Type]; exists {
		return false, nil
	}
	held[badge.Type] = badge
	return true, nil
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

var _ ports.BadgeRepository = (*Store)(nil)
var _ ports.InviteStatsProvider = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
