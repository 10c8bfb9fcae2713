package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"medipay/internal/model"
)

// InvoiceRepository defines invoice persistence operations. Only the
// invoice generator writes here.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	Save(ctx context.Context, invoice *model.Invoice) error
	FindByPaymentRecordID(ctx context.Context, recordID uuid.UUID) (*model.Invoice, error)
	FindByNumber(ctx context.Context, number string) (*model.Invoice, error)
	CountByPaymentID(ctx context.Context, paymentID string) (int64, error)
	MaxSeqForYear(ctx context.Context, year int) (int, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create inserts a new invoice with its line items.
func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// Save persists all fields of an existing invoice.
func (r *invoiceRepository) Save(ctx context.Context, invoice *model.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

// FindByPaymentRecordID finds the invoice for a payment record.
func (r *invoiceRepository) FindByPaymentRecordID(ctx context.Context, recordID uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).Preload("LineItems").
		Where("payment_record_id = ?", recordID).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByNumber finds an invoice by its human-readable number.
func (r *invoiceRepository) FindByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).Preload("LineItems").
		Where("invoice_number = ?", number).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// CountByPaymentID counts invoices referencing a public payment id.
func (r *invoiceRepository) CountByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("payment_id = ?", paymentID).Count(&count).Error
	return count, err
}

// MaxSeqForYear returns the highest sequence number issued in a year,
// zero when the year has no invoices yet.
func (r *invoiceRepository) MaxSeqForYear(ctx context.Context, year int) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("year = ?", year).
		Select("MAX(seq)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
