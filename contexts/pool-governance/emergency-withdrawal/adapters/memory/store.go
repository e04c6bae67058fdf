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

	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
	"tontine/contexts/pool-governance/emergency-withdrawal/ports"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the mutex-guarded in-memory adapter backing tests and local
// wiring. The single lock is what makes vote switches and the terminal CAS
// atomic here; postgres gets the same guarantees from transactions.
type Store struct {
	mu sync.RWMutex

	requests map[string]entities.WithdrawalRequest
	votes    map[string]entities.Vote
	members  map[string][]string
	outbox   map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		requests: make(map[string]entities.WithdrawalRequest),
		votes:    make(map[string]entities.Vote),
		members:  make(map[string][]string),
		outbox:   make(map[string]outboxRecord),
	}
}

// SetPoolMembers seeds the membership projection.
func (s *Store) SetPoolMembers(poolID string, members []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trimmed := make([]string, 0, len(members))
	for _, member := range members {
		if value := strings.TrimSpace(member); value != "" {
			trimmed = append(trimmed, value)
		}
	}
	s.members[strings.TrimSpace(poolID)] = trimmed
}

func (s *Store) CreateRequest(_ context.Context, request entities.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	requestID := strings.TrimSpace(request.RequestID)
	if _, exists := s.requests[requestID]; exists {
		return domainerrors.ErrConflict
	}
	s.requests[requestID] = request
	return nil
}

func (s *Store) GetRequest(_ context.Context, requestID string) (entities.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok {
		return entities.WithdrawalRequest{}, domainerrors.ErrRequestNotFound
	}
	return request, nil
}

func (s *Store) ListRequestsByPool(_ context.Context, poolID string) ([]entities.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.WithdrawalRequest, 0)
	for _, request := range s.requests {
		if strings.EqualFold(request.PoolID, strings.TrimSpace(poolID)) {
			items = append(items, request)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) TransitionState(
	_ context.Context,
	requestID string,
	from entities.RequestState,
	to entities.RequestState,
	resolvedAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok {
		return false, domainerrors.ErrRequestNotFound
	}
	if request.State != from {
		return false, nil
	}
	request.State = to
	settled := resolvedAt.UTC()
	request.ResolvedAt = &settled
	s.requests[strings.TrimSpace(requestID)] = request
	return true, nil
}

func (s *Store) GetVote(_ context.Context, requestID string, voter string) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[voteKey(requestID, voter)]
	if !ok {
		return entities.Vote{}, false, nil
	}
	return vote, true, nil
}

func (s *Store) InsertVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey(vote.RequestID, vote.Voter)
	if _, exists := s.votes[key]; exists {
		return domainerrors.ErrConflict
	}
	s.votes[key] = vote
	return nil
}

func (s *Store) SwitchVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey(vote.RequestID, vote.Voter)
	if _, exists := s.votes[key]; !exists {
		return domainerrors.ErrVoteNotFound
	}
	// Delete+insert collapses to one map write under the lock.
	s.votes[key] = vote
	return nil
}

func (s *Store) ListVotesByRequest(_ context.Context, requestID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.RequestID == strings.TrimSpace(requestID) {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CastAt.Before(items[j].CastAt)
	})
	return items, nil
}

func (s *Store) PoolMembers(_ context.Context, poolID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.members[strings.TrimSpace(poolID)]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), members...), nil
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

func voteKey(requestID string, voter string) string {
	return strings.TrimSpace(requestID) + "|" + strings.ToLower(strings.TrimSpace(voter))
}

var _ ports.RequestRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.MembershipProvider = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
