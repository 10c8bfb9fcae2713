package repository

import (
	"context"

	"gorm.io/gorm"
)

// Stores bundles the repositories that participate in a transaction.
// Status change, derived-field updates, and the log append commit or roll
// back together through one of these.
type Stores struct {
	Payments  PaymentRepository
	Invoices  InvoiceRepository
	Log       VerificationLogRepository
	Summaries SummaryRepository
}

// NewStores builds a Stores bound to db (which may be a transaction).
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Payments:  NewPaymentRepository(db),
		Invoices:  NewInvoiceRepository(db),
		Log:       NewVerificationLogRepository(db),
		Summaries: NewSummaryRepository(db),
	}
}

// TxManager runs a function with transaction-scoped stores.
type TxManager interface {
	Do(ctx context.Context, fn func(tx *Stores) error) error
}

type txManager struct {
	db *gorm.DB
}

// NewTxManager creates a TxManager over db.
func NewTxManager(db *gorm.DB) TxManager {
	return &txManager{db: db}
}

// Do executes fn inside a database transaction. An error from fn rolls
// back every write made through the passed stores.
func (m *txManager) Do(ctx context.Context, fn func(tx *Stores) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStores(tx))
	})
}
