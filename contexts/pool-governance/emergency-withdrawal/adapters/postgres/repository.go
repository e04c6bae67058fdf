package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tontine/contexts/pool-governance/emergency-withdrawal/domain/entities"
	domainerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
	"tontine/contexts/pool-governance/emergency-withdrawal/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateRequest(ctx context.Context, request entities.WithdrawalRequest) error {
	row := requestModelFromEntity(request)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("withdrawal_repo_create_request_failed", err,
			"request_id", strings.TrimSpace(request.RequestID),
			"pool_id", strings.TrimSpace(request.PoolID),
		)
	}
	return nil
}

func (r *Repository) GetRequest(ctx context.Context, requestID string) (entities.WithdrawalRequest, error) {
	var row requestModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(requestID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.WithdrawalRequest{}, domainerrors.ErrRequestNotFound
		}
		return entities.WithdrawalRequest{}, r.logError("withdrawal_repo_get_request_failed", err,
			"request_id", strings.TrimSpace(requestID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListRequestsByPool(ctx context.Context, poolID string) ([]entities.WithdrawalRequest, error) {
	var rows []requestModel
	if err := r.db.WithContext(ctx).
		Where("pool_id = ?", strings.TrimSpace(poolID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("withdrawal_repo_list_requests_failed", err,
			"pool_id", strings.TrimSpace(poolID),
		)
	}
	items := make([]entities.WithdrawalRequest, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// TransitionState is a guarded single-statement update; RowsAffected tells
// apart the CAS winner from callers racing on an already-settled request.
func (r *Repository) TransitionState(
	ctx context.Context,
	requestID string,
	from entities.RequestState,
	to entities.RequestState,
	resolvedAt time.Time,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&requestModel{}).
		Where("id = ?", strings.TrimSpace(requestID)).
		Where("state = ?", string(from)).
		Updates(map[string]any{
			"state":       string(to),
			"resolved_at": resolvedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("withdrawal_repo_transition_state_failed", result.Error,
			"request_id", strings.TrimSpace(requestID),
			"to_state", string(to),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) GetVote(ctx context.Context, requestID string, voter string) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		Where("LOWER(voter) = LOWER(?)", strings.TrimSpace(voter)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("withdrawal_repo_get_vote_failed", err,
			"request_id", strings.TrimSpace(requestID),
			"voter", strings.TrimSpace(voter),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) InsertVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("withdrawal_repo_insert_vote_failed", err,
			"request_id", strings.TrimSpace(vote.RequestID),
			"voter", strings.TrimSpace(vote.Voter),
		)
	}
	return nil
}

// SwitchVote runs delete+insert inside one transaction so a concurrent
// tally read sees either the old vote or the new one, never both or
// neither.
func (r *Repository) SwitchVote(ctx context.Context, vote entities.Vote) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("request_id = ?", strings.TrimSpace(vote.RequestID)).
			Where("LOWER(voter) = LOWER(?)", strings.TrimSpace(vote.Voter)).
			Delete(&voteModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrVoteNotFound
		}
		row := voteModelFromEntity(vote)
		return tx.Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVoteNotFound) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("withdrawal_repo_switch_vote_failed", err,
			"request_id", strings.TrimSpace(vote.RequestID),
			"voter", strings.TrimSpace(vote.Voter),
		)
	}
	return nil
}

func (r *Repository) ListVotesByRequest(ctx context.Context, requestID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		Order("cast_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("withdrawal_repo_list_votes_failed", err,
			"request_id", strings.TrimSpace(requestID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) PoolMembers(ctx context.Context, poolID string) ([]string, error) {
	var rows []poolMemberModel
	if err := r.db.WithContext(ctx).
		Where("pool_id = ?", strings.TrimSpace(poolID)).
		Order("joined_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("withdrawal_repo_pool_members_failed", err,
			"pool_id", strings.TrimSpace(poolID),
		)
	}
	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.MemberAddress)
	}
	return members, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("withdrawal_repo_append_outbox_marshal_failed", err,
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("withdrawal_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("withdrawal_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("withdrawal_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("withdrawal_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "pool-governance/emergency-withdrawal",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("withdrawal repository operation failed", fields...)
	return err
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type requestModel struct {
	ID             string          `gorm:"column:id;primaryKey"`
	PoolID         string          `gorm:"column:pool_id"`
	Requester      string          `gorm:"column:requester"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric"`
	Reason         string          `gorm:"column:reason"`
	State          string          `gorm:"column:state"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	VotingDeadline time.Time       `gorm:"column:voting_deadline"`
	ResolvedAt     *time.Time      `gorm:"column:resolved_at"`
}

func (requestModel) TableName() string {
	return "withdrawal_requests"
}

func requestModelFromEntity(request entities.WithdrawalRequest) requestModel {
	row := requestModel{
		ID:             strings.TrimSpace(request.RequestID),
		PoolID:         strings.TrimSpace(request.PoolID),
		Requester:      strings.TrimSpace(request.Requester),
		Amount:         request.Amount,
		Reason:         strings.TrimSpace(request.Reason),
		State:          string(request.State),
		CreatedAt:      request.CreatedAt.UTC(),
		VotingDeadline: request.VotingDeadline.UTC(),
	}
	if request.ResolvedAt != nil {
		resolvedAt := request.ResolvedAt.UTC()
		row.ResolvedAt = &resolvedAt
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m requestModel) toEntity() entities.WithdrawalRequest {
	var resolvedAt *time.Time
	if m.ResolvedAt != nil {
		settled := m.ResolvedAt.UTC()
		resolvedAt = &settled
	}
	return entities.WithdrawalRequest{
		RequestID:      m.ID,
		PoolID:         m.PoolID,
		Requester:      m.Requester,
		Amount:         m.Amount,
		Reason:         m.Reason,
		State:          entities.RequestState(m.State),
		CreatedAt:      m.CreatedAt.UTC(),
		VotingDeadline: m.VotingDeadline.UTC(),
		ResolvedAt:     resolvedAt,
	}
}

type voteModel struct {
	RequestID string    `gorm:"column:request_id;primaryKey"`
	Voter     string    `gorm:"column:voter;primaryKey"`
	Support   bool      `gorm:"column:support"`
	CastAt    time.Time `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "withdrawal_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		RequestID: strings.TrimSpace(vote.RequestID),
		Voter:     strings.TrimSpace(vote.Voter),
		Support:   vote.Support,
		CastAt:    vote.CastAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		RequestID: m.RequestID,
		Voter:     m.Voter,
		Support:   m.Support,
		CastAt:    m.CastAt.UTC(),
	}
}

type poolMemberModel struct {
	PoolID        string    `gorm:"column:pool_id;primaryKey"`
	MemberAddress string    `gorm:"column:member_address;primaryKey"`
	JoinedAt      time.Time `gorm:"column:joined_at"`
}

func (poolMemberModel) TableName() string {
	return "pool_members"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "withdrawal_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.RequestRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.MembershipProvider = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
