package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"medipay/internal/auth"
	"medipay/internal/cache"
	apperrors "medipay/internal/errors"
	"medipay/internal/gateway"
	"medipay/internal/model"
	"medipay/internal/repository"
)

// TransitionContext carries gateway evidence for mark_received on online
// payments.
type TransitionContext struct {
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	GatewaySignature string `json:"gateway_signature,omitempty"`
	// FetchVerified is set by the reconciliation job after it has already
	// confirmed capture via fetch_payment; it bypasses the signature check.
	FetchVerified       bool   `json:"-"`
	GatewayResponseBlob string `json:"-"`
}

// TransitionService is the state machine: the only component that
// mutates payment records. Each Apply commits the status change, derived
// fields, and the audit entry in one transaction.
type TransitionService interface {
	Apply(ctx context.Context, paymentID string, action model.TransitionAction, actor auth.Actor, notes string, tctx *TransitionContext) (*model.PaymentRecord, error)
}

type transitionService struct {
	payments  repository.PaymentRepository
	tx        repository.TxManager
	gw        gateway.Adapter
	invoices  InvoiceGenerator
	summaries repository.SummaryRepository
	policy    SettlePolicy
	cache     *cache.Client
}

// NewTransitionService creates a new transition service.
func NewTransitionService(
	payments repository.PaymentRepository,
	tx repository.TxManager,
	gw gateway.Adapter,
	invoices InvoiceGenerator,
	summaries repository.SummaryRepository,
	policy SettlePolicy,
	cacheClient *cache.Client,
) TransitionService {
	return &transitionService{
		payments:  payments,
		tx:        tx,
		gw:        gw,
		invoices:  invoices,
		summaries: summaries,
		policy:    policy,
		cache:     cacheClient,
	}
}

// Apply validates and performs one transition. Gateway verification runs
// before the transaction so no row lock is held across an outbound call.
func (s *transitionService) Apply(ctx context.Context, paymentID string, action model.TransitionAction, actor auth.Actor, notes string, tctx *TransitionContext) (*model.PaymentRecord, error) {
	if tctx == nil {
		tctx = &TransitionContext{}
	}
	base := action.Base()

	record, err := s.payments.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}

	if _, ok := model.NextStatus(record.Status, base); !ok {
		return nil, fmt.Errorf("%w: cannot %s from %s", apperrors.ErrIllegalTransition, base, record.Status)
	}
	if err := s.checkGuards(ctx, record, base, actor, notes, tctx); err != nil {
		if base == model.ActionMarkReceived && record.Method == model.MethodOnline &&
			record.GatewayPaymentID == "" && tctx.GatewayPaymentID != "" &&
			(errors.Is(err, apperrors.ErrGatewayTimeout) || errors.Is(err, apperrors.ErrGatewayUnavailable)) {
			// Status stays pending, but keep the candidate payment id so
			// the reconciliation sweep can resolve the outcome later.
			record.GatewayPaymentID = tctx.GatewayPaymentID
			if saveErr := s.payments.Save(ctx, record); saveErr != nil {
				log.Printf("store gateway hint for %s: %v", paymentID, saveErr)
			}
		}
		return nil, err
	}

	var updated *model.PaymentRecord
	err = s.tx.Do(ctx, func(tx *repository.Stores) error {
		locked, err := tx.Payments.FindByPaymentIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		// Re-check under the lock: a concurrent request may have moved
		// the record since the pre-read.
		next, ok := model.NextStatus(locked.Status, base)
		if !ok {
			return fmt.Errorf("%w: cannot %s from %s", apperrors.ErrIllegalTransition, base, locked.Status)
		}

		prev := locked.Status
		now := time.Now().UTC()
		applyFields(locked, base, next, actor, notes, tctx, now)
		locked.SyncLiveKey()

		if err := locked.CheckDerivedInvariants(); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvariantViolation, err)
		}
		if err := tx.Payments.Save(ctx, locked); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Another live record took the idempotency key while this
				// one was out of the live set (dispute resolution race).
				return fmt.Errorf("%w: idempotency key already held for %s", apperrors.ErrInvariantViolation, locked.IdempotencyKey())
			}
			return err
		}
		if err := tx.Log.Append(ctx, &model.VerificationLogEntry{
			PaymentRecordID: locked.ID,
			PaymentID:       locked.PaymentID,
			ActorID:         actor.ID,
			Action:          action,
			PrevStatus:      prev,
			NewStatus:       next,
			Notes:           notes,
		}); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInvariantViolation) {
			log.Printf("ERROR transition %s on %s: %v", action, paymentID, err)
		}
		return nil, err
	}

	s.afterCommit(ctx, updated, base)
	return updated, nil
}

// checkGuards enforces the per-action preconditions of the graph.
func (s *transitionService) checkGuards(ctx context.Context, record *model.PaymentRecord, base model.TransitionAction, actor auth.Actor, notes string, tctx *TransitionContext) error {
	switch base {
	case model.ActionMarkReceived:
		if record.Method == model.MethodOnline {
			return s.verifyGatewayEvidence(ctx, record, actor, tctx)
		}
		if !actor.IsStaff() {
			return fmt.Errorf("%w: mark_received for %s payments", apperrors.ErrActorNotStaff, record.Method)
		}
	case model.ActionVerify, model.ActionReject:
		if !actor.IsStaff() {
			return fmt.Errorf("%w: %s", apperrors.ErrActorNotStaff, base)
		}
	case model.ActionRefund, model.ActionDispute:
		if !actor.IsStaff() {
			return fmt.Errorf("%w: %s", apperrors.ErrActorNotStaff, base)
		}
		if notes == "" {
			return fmt.Errorf("%w: %s requires a reason in notes", apperrors.ErrMissingField, base)
		}
	}
	return nil
}

// verifyGatewayEvidence accepts a mark_received on an online payment via
// one of: a valid checkout signature, a prior fetch by the reconciliation
// job, or a staff-initiated fetch confirming capture.
func (s *transitionService) verifyGatewayEvidence(ctx context.Context, record *model.PaymentRecord, actor auth.Actor, tctx *TransitionContext) error {
	if tctx.GatewayPaymentID == "" {
		return fmt.Errorf("%w: gateway_payment_id", apperrors.ErrMissingField)
	}
	if tctx.GatewaySignature != "" {
		if !s.gw.VerifySignature(record.GatewayOrderID, tctx.GatewayPaymentID, tctx.GatewaySignature) {
			return apperrors.ErrGatewaySignatureInvalid
		}
		return nil
	}
	if tctx.FetchVerified {
		return nil
	}
	if !actor.IsStaff() {
		return fmt.Errorf("%w: gateway_signature", apperrors.ErrMissingField)
	}
	payment, err := s.gw.FetchPayment(ctx, tctx.GatewayPaymentID)
	if err != nil {
		return err
	}
	if !payment.Captured() {
		return fmt.Errorf("%w: gateway reports status %q", apperrors.ErrGatewaySignatureInvalid, payment.Status)
	}
	tctx.GatewayResponseBlob = payment.Raw
	return nil
}

// applyFields mutates the locked record for the transition.
func applyFields(record *model.PaymentRecord, base model.TransitionAction, next model.PaymentStatus, actor auth.Actor, notes string, tctx *TransitionContext, now time.Time) {
	record.Status = next

	switch base {
	case model.ActionMarkReceived:
		record.ReceivedAt = &now
		if record.Method == model.MethodOnline {
			record.GatewayPaymentID = tctx.GatewayPaymentID
			if tctx.GatewaySignature != "" {
				record.GatewaySignature = tctx.GatewaySignature
			}
			if tctx.GatewayResponseBlob != "" {
				record.GatewayResponseBlob = tctx.GatewayResponseBlob
			}
		}
	case model.ActionVerify:
		record.IsAdminVerified = true
		actorID := actor.ID
		record.AdminVerifiedBy = &actorID
		record.AdminVerificationDate = &now
		if record.ReceivedAt == nil {
			// Dispute resolution: the original receipt time was dropped
			// with the dispute; record the re-confirmation time.
			record.ReceivedAt = &now
		}
	case model.ActionRefund:
		record.IsAdminVerified = false
		record.AdminVerifiedBy = nil
		record.AdminVerificationDate = nil
		if record.ReceivedAt == nil {
			record.ReceivedAt = &now
		}
		record.AdminNotes = appendNote(record.AdminNotes, "refund: "+notes)
	case model.ActionDispute:
		record.IsAdminVerified = false
		record.AdminVerifiedBy = nil
		record.AdminVerificationDate = nil
		record.ReceivedAt = nil
		record.AdminNotes = appendNote(record.AdminNotes, "dispute: "+notes)
	case model.ActionReject:
		record.IsAdminVerified = false
		record.AdminVerifiedBy = nil
		record.AdminVerificationDate = nil
		record.ReceivedAt = nil
	}
}

// afterCommit runs the single invoice-generation call site and cache
// invalidation once the transition is durable.
func (s *transitionService) afterCommit(ctx context.Context, record *model.PaymentRecord, base model.TransitionAction) {
	if s.invoices != nil {
		switch {
		case s.policy.ShouldGenerate(record.OrderKind, record.Status):
			if _, err := s.invoices.Generate(ctx, record.PaymentID); err != nil {
				log.Printf("invoice generation for %s: %v", record.PaymentID, err)
			}
		case base == model.ActionRefund:
			if err := s.invoices.Void(ctx, record.PaymentID); err != nil {
				log.Printf("invoice void for %s: %v", record.PaymentID, err)
			}
		}
	}
	// Invalidate both summary layers for the record's creation day. The
	// rollup job only revisits yesterday and today, so a stale
	// materialized row for an older day would otherwise never heal.
	date := record.CreatedAt.UTC().Format(dateLayout)
	if s.summaries != nil {
		if err := s.summaries.DeleteByDate(ctx, date); err != nil {
			log.Printf("summary invalidation for %s: %v", date, err)
		}
	}
	if s.cache != nil {
		s.cache.Delete(ctx, summaryCacheKey(date))
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
