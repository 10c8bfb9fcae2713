package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medipay/internal/model"
)

// SearchFilter narrows reconciliation queries and exports.
type SearchFilter struct {
	From          *time.Time
	To            *time.Time
	Kind          model.OrderKind
	Method        model.PaymentMethod
	Status        model.PaymentStatus
	CustomerPhone string
	Limit         int
	Offset        int
}

// PaymentRepository defines payment record persistence operations.
// Intake inserts, the state machine updates; nothing deletes.
type PaymentRepository interface {
	Create(ctx context.Context, record *model.PaymentRecord) error
	Save(ctx context.Context, record *model.PaymentRecord) error
	FindByPaymentID(ctx context.Context, paymentID string) (*model.PaymentRecord, error)
	FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*model.PaymentRecord, error)
	FindLiveByIdempotencyKey(ctx context.Context, kind model.OrderKind, externalID string, method model.PaymentMethod) (*model.PaymentRecord, error)
	ListPendingVerifications(ctx context.Context, limit, offset int) ([]model.PaymentRecord, error)
	Search(ctx context.Context, filter SearchFilter) ([]model.PaymentRecord, error)
	ListStalePendingOnline(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentRecord, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a new payment record. A live-key collision surfaces as
// gorm.ErrDuplicatedKey for the caller's winner re-read.
func (r *paymentRepository) Create(ctx context.Context, record *model.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Save persists all fields of an existing record.
func (r *paymentRepository) Save(ctx context.Context, record *model.PaymentRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// FindByPaymentID finds a record by its public payment id.
func (r *paymentRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByPaymentIDForUpdate finds a record with a row-level lock. Only
// meaningful inside a transaction.
func (r *paymentRepository) FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_id = ?", paymentID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindLiveByIdempotencyKey returns the live record for
// (kind, external_id, method), if any.
func (r *paymentRepository) FindLiveByIdempotencyKey(ctx context.Context, kind model.OrderKind, externalID string, method model.PaymentMethod) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("order_kind = ? AND order_external_id = ? AND method = ? AND status IN ?",
			kind, externalID, method, model.LiveStatuses).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPendingVerifications returns received records awaiting admin
// sign-off, oldest first.
func (r *paymentRepository) ListPendingVerifications(ctx context.Context, limit, offset int) ([]model.PaymentRecord, error) {
	var records []model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_admin_verified = ?", model.StatusReceived, false).
		Order("received_at ASC").
		Limit(limit).Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Search lists records matching the filter, newest first.
func (r *paymentRepository) Search(ctx context.Context, filter SearchFilter) ([]model.PaymentRecord, error) {
	q := r.db.WithContext(ctx).Model(&model.PaymentRecord{})
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	if filter.Kind != "" {
		q = q.Where("order_kind = ?", filter.Kind)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CustomerPhone != "" {
		q = q.Where("customer_phone = ?", filter.CustomerPhone)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var records []model.PaymentRecord
	if err := q.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListStalePendingOnline returns online records still pending with a
// gateway order attached, for the reconciliation sweep.
func (r *paymentRepository) ListStalePendingOnline(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentRecord, error) {
	var records []model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("method = ? AND status = ? AND gateway_order_id <> '' AND created_at < ?",
			model.MethodOnline, model.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
