package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"medipay/internal/model"
)

// VerificationLogRepository defines audit log persistence operations.
// The log is append-only; entries are written in the same transaction as
// the status change they record.
type VerificationLogRepository interface {
	Append(ctx context.Context, entry *model.VerificationLogEntry) error
	ListByPaymentRecordID(ctx context.Context, recordID uuid.UUID) ([]model.VerificationLogEntry, error)
}

type verificationLogRepository struct {
	db *gorm.DB
}

// NewVerificationLogRepository creates a new verification log repository.
func NewVerificationLogRepository(db *gorm.DB) VerificationLogRepository {
	return &verificationLogRepository{db: db}
}

// Append writes one audit entry.
func (r *verificationLogRepository) Append(ctx context.Context, entry *model.VerificationLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByPaymentRecordID returns a payment's audit trail in append order.
// seq is strictly increasing per insert, so the chain is total even for
// entries sharing a created_at second.
func (r *verificationLogRepository) ListByPaymentRecordID(ctx context.Context, recordID uuid.UUID) ([]model.VerificationLogEntry, error) {
	var entries []model.VerificationLogEntry
	err := r.db.WithContext(ctx).
		Where("payment_record_id = ?", recordID).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
