package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
)

// Phase tracks how far a checkout got. A journal row is written before the
// first external call and advanced after each phase, so a crash between
// payment collection and order commit leaves a visible "collected" row for
// reconciliation instead of silently orphaning the charge.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseCollected Phase = "collected"
	PhaseCommitted Phase = "committed"
	PhaseFailed    Phase = "failed"
)

// JournalEntry is one checkout attempt.
type JournalEntry struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	CorrelationToken string    `gorm:"uniqueIndex;not null"`
	MemberID         string    `gorm:"index"`
	Amount           int64     `gorm:"not null"`
	PointsUsed       int64
	Method           string
	Phase            Phase  `gorm:"not null"`
	PaymentRef       string `gorm:"index"`
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Journal persists checkout attempts.
type Journal interface {
	Record(ctx context.Context, entry *JournalEntry) error
	MarkCollected(ctx context.Context, correlationToken, paymentRef string) error
	MarkCommitted(ctx context.Context, correlationToken string) error
	MarkFailed(ctx context.Context, correlationToken, reason string) error
}

type gormJournal struct {
	conn *gorm.DB
}

func NewJournal(conn *gorm.DB) (Journal, error) {
	if conn == nil {
		return nil, errors.New("journal connection required")
	}
	return &gormJournal{conn: conn}, nil
}

// Migrate creates the journal table.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&JournalEntry{})
}

func (j *gormJournal) Record(ctx context.Context, entry *JournalEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Phase == "" {
		entry.Phase = PhasePending
	}
	if err := j.conn.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "checkout already in flight for this token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout attempt")
	}
	return nil
}

func (j *gormJournal) MarkCollected(ctx context.Context, correlationToken, paymentRef string) error {
	return j.advance(ctx, correlationToken, map[string]any{
		"phase":       PhaseCollected,
		"payment_ref": paymentRef,
	})
}

func (j *gormJournal) MarkCommitted(ctx context.Context, correlationToken string) error {
	return j.advance(ctx, correlationToken, map[string]any{
		"phase": PhaseCommitted,
	})
}

func (j *gormJournal) MarkFailed(ctx context.Context, correlationToken, reason string) error {
	return j.advance(ctx, correlationToken, map[string]any{
		"phase":          PhaseFailed,
		"failure_reason": reason,
	})
}

func (j *gormJournal) advance(ctx context.Context, correlationToken string, updates map[string]any) error {
	result := j.conn.WithContext(ctx).
		Model(&JournalEntry{}).
		Where("correlation_token = ?", correlationToken).
		Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "advance checkout journal")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no journal entry for correlation token")
	}
	return nil
}
