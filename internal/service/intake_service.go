package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "medipay/internal/errors"
	"medipay/internal/gateway"
	"medipay/internal/model"
	"medipay/internal/repository"
)

// IntakeInput is everything a checkout flow supplies to open a payment.
type IntakeInput struct {
	OrderKind       model.OrderKind
	OrderExternalID string
	Method          model.PaymentMethod
	UserID          string
	BaseAmount      decimal.Decimal
	AdditionalFees  decimal.Decimal
	// TotalAmount is optional; when the caller pre-computes it, it must
	// equal BaseAmount + AdditionalFees.
	TotalAmount *decimal.Decimal
	Customer    model.CustomerSnapshot
}

// IntakeService is the single entry point that may insert payment
// records. Intake is an upsert on (kind, external_id, method) restricted
// to live statuses, so calling it N times per order has the side effects
// of calling it once.
type IntakeService interface {
	Intake(ctx context.Context, input IntakeInput) (*model.PaymentRecord, error)
	CreateGatewayOrder(ctx context.Context, paymentID string) (*model.PaymentRecord, error)
}

type intakeService struct {
	payments repository.PaymentRepository
	tx       repository.TxManager
	gw       gateway.Adapter
	currency string
}

// NewIntakeService creates a new intake service.
func NewIntakeService(payments repository.PaymentRepository, tx repository.TxManager, gw gateway.Adapter) IntakeService {
	return &intakeService{payments: payments, tx: tx, gw: gw, currency: "INR"}
}

// Intake returns the live record for the order/method pair, creating a
// pending one when none exists. A concurrent loser re-reads and returns
// the winner's row.
func (s *intakeService) Intake(ctx context.Context, input IntakeInput) (*model.PaymentRecord, error) {
	if err := validateIntake(&input); err != nil {
		return nil, err
	}

	existing, err := s.payments.FindLiveByIdempotencyKey(ctx, input.OrderKind, input.OrderExternalID, input.Method)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup live record: %w", err)
	}

	record := &model.PaymentRecord{
		UserID:          input.UserID,
		OrderKind:       input.OrderKind,
		OrderExternalID: input.OrderExternalID,
		Method:          input.Method,
		BaseAmount:      input.BaseAmount.Round(2),
		AdditionalFees:  input.AdditionalFees.Round(2),
		TotalAmount:     input.BaseAmount.Add(input.AdditionalFees).Round(2),
		Status:          model.StatusPending,
		Customer:        input.Customer,
	}

	err = s.tx.Do(ctx, func(tx *repository.Stores) error {
		if err := tx.Payments.Create(ctx, record); err != nil {
			return err
		}
		return tx.Log.Append(ctx, &model.VerificationLogEntry{
			PaymentRecordID: record.ID,
			PaymentID:       record.PaymentID,
			ActorID:         intakeActor(input.UserID),
			Action:          model.ActionCreate,
			NewStatus:       model.StatusPending,
		})
	})
	if err == nil {
		return record, nil
	}

	// Lost the insert race: another intake for the same key committed
	// first. Return the winner's row.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		winner, lookupErr := s.payments.FindLiveByIdempotencyKey(ctx, input.OrderKind, input.OrderExternalID, input.Method)
		if lookupErr != nil {
			return nil, fmt.Errorf("re-read after duplicate: %w", lookupErr)
		}
		log.Printf("intake: duplicate detected for %s, returning %s", record.IdempotencyKey(), winner.PaymentID)
		return winner, nil
	}
	return nil, fmt.Errorf("create payment record: %w", err)
}

// CreateGatewayOrder provisions the provider-side order for an online
// payment and stores its id on the record. Safe to call again; an
// existing order is returned unchanged.
func (s *intakeService) CreateGatewayOrder(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	record, err := s.payments.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	if record.Method != model.MethodOnline {
		return nil, fmt.Errorf("%w: gateway order requires an online payment", apperrors.ErrIllegalTransition)
	}
	if record.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: gateway order requires a pending payment, have %s", apperrors.ErrIllegalTransition, record.Status)
	}
	if record.GatewayOrderID != "" {
		return record, nil
	}

	order, err := s.gw.CreateOrder(ctx, record.TotalAmount, s.currency, map[string]string{
		"payment_id":        record.PaymentID,
		"order_kind":        string(record.OrderKind),
		"order_external_id": record.OrderExternalID,
	})
	if err != nil {
		return nil, err
	}

	record.GatewayOrderID = order.GatewayOrderID
	record.GatewayResponseBlob = order.Raw
	if err := s.payments.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("store gateway order: %w", err)
	}
	return record, nil
}

func validateIntake(input *IntakeInput) error {
	if !model.KnownKind(input.OrderKind) {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownKind, input.OrderKind)
	}
	if !model.KnownMethod(input.Method) {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownMethod, input.Method)
	}
	if input.OrderExternalID == "" {
		return fmt.Errorf("%w: order_external_id", apperrors.ErrMissingField)
	}
	if input.Customer.Name == "" {
		return fmt.Errorf("%w: customer name", apperrors.ErrMissingField)
	}
	if input.Customer.Phone == "" {
		return fmt.Errorf("%w: customer phone", apperrors.ErrMissingField)
	}
	if input.BaseAmount.IsNegative() || input.AdditionalFees.IsNegative() {
		return apperrors.ErrAmountNegative
	}
	if input.TotalAmount != nil {
		want := input.BaseAmount.Add(input.AdditionalFees)
		if !input.TotalAmount.Round(2).Equal(want.Round(2)) {
			return fmt.Errorf("%w: got %s, want %s", apperrors.ErrAmountMismatch, input.TotalAmount, want)
		}
	}
	return nil
}

func intakeActor(userID string) string {
	if userID != "" {
		return userID
	}
	return "checkout"
}
