package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "medipay/internal/errors"
	"medipay/internal/model"
	"medipay/internal/repository"
)

// InvoiceGenerator produces at most one invoice per settled payment.
type InvoiceGenerator interface {
	Generate(ctx context.Context, paymentID string) (*model.Invoice, error)
	Void(ctx context.Context, paymentID string) error
	FindForPayment(ctx context.Context, paymentID string) (*model.Invoice, error)
}

type invoiceService struct {
	payments repository.PaymentRepository
	invoices repository.InvoiceRepository
	prefix   string
	seller   model.PartySnapshot
}

// NewInvoiceService creates a new invoice generator.
func NewInvoiceService(payments repository.PaymentRepository, invoices repository.InvoiceRepository, prefix string, seller model.PartySnapshot) InvoiceGenerator {
	return &invoiceService{payments: payments, invoices: invoices, prefix: prefix, seller: seller}
}

// Generate is idempotent: a repeat call returns the existing invoice.
// Three independent existence checks run before the insert; the unique
// index on the payment reference backs them up under races.
func (s *invoiceService) Generate(ctx context.Context, paymentID string) (*model.Invoice, error) {
	record, err := s.payments.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	if !record.Status.IsSettled() {
		return nil, fmt.Errorf("%w: status is %s", apperrors.ErrPaymentNotSettled, record.Status)
	}

	// Gate (a): any invoice already referencing the public payment id.
	count, err := s.invoices.CountByPaymentID(ctx, record.PaymentID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return s.invoices.FindByPaymentRecordID(ctx, record.ID)
	}

	// Gate (b): direct lookup by the payment record relation.
	existing, err := s.invoices.FindByPaymentRecordID(ctx, record.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	year := now.Year()
	seq, err := s.invoices.MaxSeqForYear(ctx, year)
	if err != nil {
		return nil, err
	}

	// Gate (c): the candidate number must be free. A taken number, before
	// or during the insert, means a neighbor won a race this instant; bump
	// and retry a few times.
	for attempt := 0; attempt < 3; attempt++ {
		seq++
		candidate := model.FormatInvoiceNumber(s.prefix, year, seq)
		if _, err := s.invoices.FindByNumber(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		invoice := &model.Invoice{
			InvoiceNumber:   candidate,
			Year:            year,
			Seq:             seq,
			PaymentRecordID: record.ID,
			PaymentID:       record.PaymentID,
			Status:          model.InvoiceStatusIssued,
			IssuedAt:        now,
			Subtotal:        record.TotalAmount,
			Tax:             decimal.Zero.Round(2),
			GrandTotal:      record.TotalAmount,
			Buyer: model.PartySnapshot{
				Name:    record.Customer.Name,
				Phone:   record.Customer.Phone,
				Address: record.Customer.Address,
			},
			Seller:    s.seller,
			LineItems: buildLineItems(record),
		}

		err := s.invoices.Create(ctx, invoice)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create invoice: %w", err)
		}

		// The duplicate can be either unique index: a concurrent
		// generation for this payment, or a different payment that took
		// the candidate number first.
		winner, findErr := s.invoices.FindByPaymentRecordID(ctx, record.ID)
		if findErr == nil {
			log.Printf("invoice: duplicate detected for %s, returning winner", record.PaymentID)
			return winner, nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil, findErr
		}
		// Number collision with a neighbor; try the next candidate.
	}
	return nil, fmt.Errorf("no free invoice number after retries for year %d", year)
}

// Void marks the payment's invoice void, keeping it on file. Refunds void
// rather than delete; there is no credit-note entity.
func (s *invoiceService) Void(ctx context.Context, paymentID string) error {
	record, err := s.payments.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPaymentNotFound
		}
		return err
	}
	invoice, err := s.invoices.FindByPaymentRecordID(ctx, record.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if invoice.Status == model.InvoiceStatusVoid {
		return nil
	}
	invoice.Status = model.InvoiceStatusVoid
	return s.invoices.Save(ctx, invoice)
}

// FindForPayment returns the invoice for a payment without creating one.
func (s *invoiceService) FindForPayment(ctx context.Context, paymentID string) (*model.Invoice, error) {
	record, err := s.payments.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return s.invoices.FindByPaymentRecordID(ctx, record.ID)
}

func buildLineItems(record *model.PaymentRecord) []model.InvoiceLineItem {
	items := []model.InvoiceLineItem{
		{
			Description: lineDescription(record),
			Qty:         1,
			UnitPrice:   record.BaseAmount,
			TaxRate:     decimal.Zero,
		},
	}
	if record.AdditionalFees.IsPositive() {
		items = append(items, model.InvoiceLineItem{
			Description: "Additional fees",
			Qty:         1,
			UnitPrice:   record.AdditionalFees,
			TaxRate:     decimal.Zero,
		})
	}
	return items
}

func lineDescription(record *model.PaymentRecord) string {
	switch record.OrderKind {
	case model.KindMedicine:
		return "Medicine order " + record.OrderExternalID
	case model.KindLabTest:
		return "Lab test " + record.OrderExternalID
	case model.KindAppointment:
		return "Appointment " + record.OrderExternalID
	case model.KindConsultation:
		return "Consultation " + record.OrderExternalID
	case model.KindHomeCollection:
		return "Home collection " + record.OrderExternalID
	default:
		return "Order " + record.OrderExternalID
	}
}
