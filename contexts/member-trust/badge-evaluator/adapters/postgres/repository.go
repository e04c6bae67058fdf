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

	"tontine/contexts/member-trust/badge-evaluator/domain/entities"
	domainerrors "tontine/contexts/member-trust/badge-evaluator/domain/errors"
	"tontine/contexts/member-trust/badge-evaluator/ports"
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

func (r *Repository) ListBadges(ctx context.Context, wallet string) ([]entities.Badge, error) {
	var rows []badgeModel
	if err := r.db.WithContext(ctx).
		Where("wallet = ?", walletKey(wallet)).
		Order("earned_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("badge_repo_list_badges_failed", err,
			"wallet", walletKey(wallet),
		)
	}
	items := make([]entities.Badge, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// CreateBadge relies on the (wallet, badge_type) unique constraint; a
// conflicting insert means the badge is already held, not an error.
func (r *Repository) CreateBadge(ctx context.Context, badge entities.Badge) (bool, error) {
	row := badgeModel{
		BadgeID:   strings.TrimSpace(badge.BadgeID),
		Wallet:    walletKey(badge.Wallet),
		BadgeType: string(badge.Type),
		EarnedAt:  badge.EarnedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}, {Name: "badge_type"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return false, nil
		}
		return false, r.logError("badge_repo_create_badge_failed", create.Error,
			"wallet", row.Wallet,
			"badge_type", row.BadgeType,
		)
	}
	return create.RowsAffected > 0, nil
}

// SuccessfulInvites reads the invite conversion projection maintained by
// the referral pipeline. A failed read surfaces as unavailable so the
// evaluator can skip only the invite-backed rule.
func (r *Repository) SuccessfulInvites(ctx context.Context, wallet string) (int, error) {
	var row inviteStatsModel
	err := r.db.WithContext(ctx).
		Where("wallet = ?", walletKey(wallet)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		r.logError("badge_repo_invite_stats_failed", err, "wallet", walletKey(wallet))
		return 0, domainerrors.ErrInviteStatsUnavailable
	}
	return row.SuccessfulInvites, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("badge_repo_append_outbox_marshal_failed", err,
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
		return r.logError("badge_repo_append_outbox_insert_failed", create.Error,
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
		return r.logError("badge_repo_append_outbox_load_existing_failed", err,
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
		return nil, r.logError("badge_repo_list_pending_outbox_failed", err, "limit", limit)
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
		return r.logError("badge_repo_mark_outbox_published_failed", result.Error,
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
		"module", "member-trust/badge-evaluator",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("badge repository operation failed", fields...)
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

type badgeModel struct {
	BadgeID   string    `gorm:"column:badge_id;primaryKey"`
	Wallet    string    `gorm:"column:wallet"`
	BadgeType string    `gorm:"column:badge_type"`
	EarnedAt  time.Time `gorm:"column:earned_at"`
}

func (badgeModel) TableName() string {
	return "member_badges"
}

func (m badgeModel) toEntity() entities.Badge {
	return entities.Badge{
		BadgeID:  m.BadgeID,
		Wallet:   m.Wallet,
		Type:     entities.BadgeType(m.BadgeType),
		EarnedAt: m.EarnedAt.UTC(),
	}
}

type inviteStatsModel struct {
	Wallet            string    `gorm:"column:wallet;primaryKey"`
	SuccessfulInvites int       `gorm:"column:successful_invites"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (inviteStatsModel) TableName() string {
	return "member_invite_stats"
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
	return "badge_outbox"
}

func walletKey(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.BadgeRepository = (*Repository)(nil)
var _ ports.InviteStatsProvider = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
