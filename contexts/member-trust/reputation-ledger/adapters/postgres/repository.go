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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tontine/contexts/member-trust/reputation-ledger/domain/entities"
	domainerrors "tontine/contexts/member-trust/reputation-ledger/domain/errors"
	"tontine/contexts/member-trust/reputation-ledger/ports"
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

func (r *Repository) GetProfile(ctx context.Context, wallet string) (entities.MemberProfile, bool, error) {
	var row profileModel
	err := r.db.WithContext(ctx).
		Where("wallet = ?", walletKey(wallet)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.MemberProfile{}, false, nil
		}
		return entities.MemberProfile{}, false, r.logError("reputation_repo_get_profile_failed", err,
			"wallet", walletKey(wallet),
		)
	}
	return row.toEntity(), true, nil
}

// AppendEvent writes the ledger row and the projection in one transaction.
// The guarded projection update carries the optimistic version check; a
// zero expectedVersion means first write for the wallet.
func (r *Repository) AppendEvent(
	ctx context.Context,
	event entities.ReputationEvent,
	profile entities.MemberProfile,
	expectedVersion int64,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := profileModelFromEntity(profile)
		if expectedVersion == 0 {
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrVersionConflict
				}
				return err
			}
		} else {
			result := tx.Model(&profileModel{}).
				Where("wallet = ?", row.Wallet).
				Where("version = ?", expectedVersion).
				Updates(map[string]any{
					"score":                row.Score,
					"version":              row.Version,
					"total_groups_joined":  row.TotalGroupsJoined,
					"active_groups":        row.ActiveGroups,
					"completed_groups":     row.CompletedGroups,
					"total_contributions":  row.TotalContributions,
					"on_time_payments":     row.OnTimePayments,
					"late_payments":        row.LatePayments,
					"missed_payments":      row.MissedPayments,
					"updated_at":           row.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrVersionConflict
			}
		}
		eventRow := eventModelFromEntity(event)
		return tx.Create(&eventRow).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVersionConflict) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("reputation_repo_append_event_failed", err,
			"wallet", walletKey(profile.Wallet),
			"action_type", string(event.Action),
		)
	}
	return nil
}

func (r *Repository) ListEvents(ctx context.Context, wallet string) ([]entities.ReputationEvent, error) {
	var rows []eventModel
	if err := r.db.WithContext(ctx).
		Where("wallet = ?", walletKey(wallet)).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("reputation_repo_list_events_failed", err,
			"wallet", walletKey(wallet),
		)
	}
	items := make([]entities.ReputationEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		Where("expires_at > ?", now.UTC()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("reputation_repo_get_idempotency_failed", err,
			"key", strings.TrimSpace(key),
		)
	}
	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"request_hash", "response_payload", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return r.logError("reputation_repo_put_idempotency_failed", err,
			"key", row.Key,
		)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("reputation_repo_append_outbox_marshal_failed", err,
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
		return r.logError("reputation_repo_append_outbox_insert_failed", create.Error,
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
		return r.logError("reputation_repo_append_outbox_load_existing_failed", err,
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
		return nil, r.logError("reputation_repo_list_pending_outbox_failed", err, "limit", limit)
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
		return r.logError("reputation_repo_mark_outbox_published_failed", result.Error,
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
		"module", "member-trust/reputation-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("reputation repository operation failed", fields...)
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

type profileModel struct {
	Wallet             string    `gorm:"column:wallet;primaryKey"`
	Score              int       `gorm:"column:score"`
	Version            int64     `gorm:"column:version"`
	TotalGroupsJoined  int       `gorm:"column:total_groups_joined"`
	ActiveGroups       int       `gorm:"column:active_groups"`
	CompletedGroups    int       `gorm:"column:completed_groups"`
	TotalContributions int       `gorm:"column:total_contributions"`
	OnTimePayments     int       `gorm:"column:on_time_payments"`
	LatePayments       int       `gorm:"column:late_payments"`
	MissedPayments     int       `gorm:"column:missed_payments"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (profileModel) TableName() string {
	return "member_profiles"
}

func profileModelFromEntity(profile entities.MemberProfile) profileModel {
	return profileModel{
		Wallet:             walletKey(profile.Wallet),
		Score:              profile.Score,
		Version:            profile.Version,
		TotalGroupsJoined:  profile.TotalGroupsJoined,
		ActiveGroups:       profile.ActiveGroups,
		CompletedGroups:    profile.CompletedGroups,
		TotalContributions: profile.TotalContributions,
		OnTimePayments:     profile.OnTimePayments,
		LatePayments:       profile.LatePayments,
		MissedPayments:     profile.MissedPayments,
		CreatedAt:          profile.CreatedAt.UTC(),
		UpdatedAt:          profile.UpdatedAt.UTC(),
	}
}

func (m profileModel) toEntity() entities.MemberProfile {
	return entities.MemberProfile{
		Wallet:             m.Wallet,
		Score:              m.Score,
		Version:            m.Version,
		TotalGroupsJoined:  m.TotalGroupsJoined,
		ActiveGroups:       m.ActiveGroups,
		CompletedGroups:    m.CompletedGroups,
		TotalContributions: m.TotalContributions,
		OnTimePayments:     m.OnTimePayments,
		LatePayments:       m.LatePayments,
		MissedPayments:     m.MissedPayments,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type eventModel struct {
	EventID       string    `gorm:"column:event_id;primaryKey"`
	Wallet        string    `gorm:"column:wallet"`
	PoolID        string    `gorm:"column:pool_id"`
	ActionType    string    `gorm:"column:action_type"`
	PointsChange  int       `gorm:"column:points_change"`
	PreviousScore int       `gorm:"column:previous_score"`
	NewScore      int       `gorm:"column:new_score"`
	Sequence      int64     `gorm:"column:sequence"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (eventModel) TableName() string {
	return "reputation_events"
}

func eventModelFromEntity(event entities.ReputationEvent) eventModel {
	return eventModel{
		EventID:       strings.TrimSpace(event.EventID),
		Wallet:        walletKey(event.Wallet),
		PoolID:        strings.TrimSpace(event.PoolID),
		ActionType:    string(event.Action),
		PointsChange:  event.PointsChange,
		PreviousScore: event.PreviousScore,
		NewScore:      event.NewScore,
		Sequence:      event.Sequence,
		CreatedAt:     event.CreatedAt.UTC(),
	}
}

func (m eventModel) toEntity() entities.ReputationEvent {
	return entities.ReputationEvent{
		EventID:       m.EventID,
		Wallet:        m.Wallet,
		PoolID:        m.PoolID,
		Action:        entities.ActionType(m.ActionType),
		PointsChange:  m.PointsChange,
		PreviousScore: m.PreviousScore,
		NewScore:      m.NewScore,
		Sequence:      m.Sequence,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "reputation_idempotency"
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
	return "reputation_outbox"
}

func walletKey(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ProfileRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
