package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medipay/internal/auth"
	apperrors "medipay/internal/errors"
	"medipay/internal/model"
	"medipay/internal/repository"
)

var staffActor = auth.Actor{ID: "staff-1", Role: auth.RoleStaff}

type transitionFixture struct {
	payments  *MockPaymentRepository
	logRepo   *MockLogRepository
	gw        *MockGateway
	invoices  *MockInvoiceGenerator
	summaries *MockSummaryRepository
	svc       TransitionService
}

func newTransitionFixture(appointmentOn string) *transitionFixture {
	f := &transitionFixture{
		payments:  new(MockPaymentRepository),
		logRepo:   new(MockLogRepository),
		gw:        new(MockGateway),
		invoices:  new(MockInvoiceGenerator),
		summaries: new(MockSummaryRepository),
	}
	f.summaries.On("DeleteByDate", mock.Anything, mock.Anything).Return(nil)
	tx := &stubTxManager{stores: &repository.Stores{Payments: f.payments, Log: f.logRepo}}
	f.svc = NewTransitionService(f.payments, tx, f.gw, f.invoices, f.summaries, NewSettlePolicy(appointmentOn), nil)
	return f
}

func codPendingRecord() *model.PaymentRecord {
	return &model.PaymentRecord{
		PaymentID:       "pay_cod1",
		OrderKind:       model.KindMedicine,
		OrderExternalID: "M-7",
		Method:          model.MethodCOD,
		Status:          model.StatusPending,
		BaseAmount:      decimal.RequireFromString("200"),
		TotalAmount:     decimal.RequireFromString("200"),
	}
}

func (f *transitionFixture) expectRead(record *model.PaymentRecord) {
	f.payments.On("FindByPaymentID", mock.Anything, record.PaymentID).Return(record, nil)
	f.payments.On("FindByPaymentIDForUpdate", mock.Anything, record.PaymentID).Return(record, nil)
}

func (f *transitionFixture) expectWrite() {
	f.payments.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
}

func TestApply_MarkReceivedCOD(t *testing.T) {
	f := newTransitionFixture("verified")
	record := codPendingRecord()
	f.expectRead(record)
	f.expectWrite()
	f.invoices.On("Generate", mock.Anything, "pay_cod1").Return(&model.Invoice{}, nil)

	updated, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionMarkReceived, staffActor, "delivered", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusReceived, updated.Status)
	require.NotNil(t, updated.ReceivedAt)
	assert.False(t, updated.IsAdminVerified)
	f.invoices.AssertExpectations(t)
}

func TestApply_MarkReceivedCODRequiresStaff(t *testing.T) {
	f := newTransitionFixture("verified")
	record := codPendingRecord()
	f.payments.On("FindByPaymentID", mock.Anything, record.PaymentID).Return(record, nil)

	_, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionMarkReceived,
		auth.Actor{ID: "u-9", Role: "patient"}, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrActorNotStaff)
	f.payments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.logRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestApply_IllegalTransitionRejected(t *testing.T) {
	f := newTransitionFixture("verified")
	record := codPendingRecord()
	record.Status = model.StatusFailed
	record.SyncLiveKey()
	f.payments.On("FindByPaymentID", mock.Anything, record.PaymentID).Return(record, nil)

	_, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionVerify, staffActor, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrIllegalTransition)
	assert.Equal(t, model.StatusFailed, record.Status)
	f.payments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.logRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestApply_VerifySetsAdminFields(t *testing.T) {
	f := newTransitionFixture("verified")
	now := time.Now().UTC()
	record := codPendingRecord()
	record.Status = model.StatusReceived
	record.ReceivedAt = &now
	f.expectRead(record)
	f.expectWrite()
	f.invoices.On("Generate", mock.Anything, "pay_cod1").Return(&model.Invoice{}, nil)

	updated, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionVerify, staffActor, "", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusVerified, updated.Status)
	assert.True(t, updated.IsAdminVerified)
	require.NotNil(t, updated.AdminVerifiedBy)
	assert.Equal(t, "staff-1", *updated.AdminVerifiedBy)
	assert.NotNil(t, updated.AdminVerificationDate)
	assert.NoError(t, updated.CheckDerivedInvariants())
}

func TestApply_OnlineMarkReceivedSignature(t *testing.T) {
	newOnline := func() *model.PaymentRecord {
		r := codPendingRecord()
		r.PaymentID = "pay_onl1"
		r.Method = model.MethodOnline
		r.GatewayOrderID = "order_9"
		return r
	}

	t.Run("valid signature accepted", func(t *testing.T) {
		f := newTransitionFixture("verified")
		record := newOnline()
		f.expectRead(record)
		f.expectWrite()
		f.gw.On("VerifySignature", "order_9", "rzp_pay_1", "goodsig").Return(true)
		f.invoices.On("Generate", mock.Anything, "pay_onl1").Return(&model.Invoice{}, nil)

		updated, err := f.svc.Apply(context.Background(), "pay_onl1", model.ActionMarkReceived,
			auth.Actor{}, "", &TransitionContext{GatewayPaymentID: "rzp_pay_1", GatewaySignature: "goodsig"})
		require.NoError(t, err)
		assert.Equal(t, model.StatusReceived, updated.Status)
		assert.Equal(t, "rzp_pay_1", updated.GatewayPaymentID)
		assert.Equal(t, "goodsig", updated.GatewaySignature)
	})

	t.Run("bad signature leaves record pending", func(t *testing.T) {
		f := newTransitionFixture("verified")
		record := newOnline()
		f.payments.On("FindByPaymentID", mock.Anything, record.PaymentID).Return(record, nil)
		f.gw.On("VerifySignature", "order_9", "rzp_pay_1", "badsig").Return(false)

		_, err := f.svc.Apply(context.Background(), "pay_onl1", model.ActionMarkReceived,
			auth.Actor{}, "", &TransitionContext{GatewayPaymentID: "rzp_pay_1", GatewaySignature: "badsig"})
		assert.ErrorIs(t, err, apperrors.ErrGatewaySignatureInvalid)
		assert.Equal(t, model.StatusPending, record.Status)
		f.payments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("gateway timeout keeps candidate id as hint", func(t *testing.T) {
		f := newTransitionFixture("verified")
		record := newOnline()
		f.payments.On("FindByPaymentID", mock.Anything, record.PaymentID).Return(record, nil)
		f.gw.On("FetchPayment", mock.Anything, "rzp_pay_1").Return(nil, apperrors.ErrGatewayTimeout)
		f.payments.On("Save", mock.Anything, record).Return(nil)

		_, err := f.svc.Apply(context.Background(), "pay_onl1", model.ActionMarkReceived,
			staffActor, "", &TransitionContext{GatewayPaymentID: "rzp_pay_1"})
		assert.ErrorIs(t, err, apperrors.ErrGatewayTimeout)
		assert.Equal(t, model.StatusPending, record.Status)
		assert.Equal(t, "rzp_pay_1", record.GatewayPaymentID)
		f.logRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("missing evidence rejected", func(t *testing.T) {
		f := newTransitionFixture("verified")
		record := newOnline()
		f.payments.On("FindByPaymentID", mock.Anything, record.PaymentID).Return(record, nil)

		_, err := f.svc.Apply(context.Background(), "pay_onl1", model.ActionMarkReceived, auth.Actor{}, "", nil)
		assert.ErrorIs(t, err, apperrors.ErrMissingField)
	})
}

func TestApply_RefundVoidsInvoiceAndRequiresNotes(t *testing.T) {
	newVerified := func() *model.PaymentRecord {
		now := time.Now().UTC()
		r := codPendingRecord()
		r.Status = model.StatusVerified
		r.ReceivedAt = &now
		r.IsAdminVerified = true
		by := "staff-1"
		r.AdminVerifiedBy = &by
		r.AdminVerificationDate = &now
		return r
	}

	t.Run("refund", func(t *testing.T) {
		f := newTransitionFixture("verified")
		record := newVerified()
		f.expectRead(record)
		f.expectWrite()
		f.invoices.On("Void", mock.Anything, "pay_cod1").Return(nil)

		updated, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionRefund, staffActor, "patient cancelled", nil)
		require.NoError(t, err)

		assert.Equal(t, model.StatusRefunded, updated.Status)
		assert.False(t, updated.IsAdminVerified)
		assert.Nil(t, updated.AdminVerifiedBy)
		assert.NotNil(t, updated.ReceivedAt)
		assert.Contains(t, updated.AdminNotes, "refund: patient cancelled")
		assert.NoError(t, updated.CheckDerivedInvariants())
		f.invoices.AssertExpectations(t)
		f.invoices.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("notes required", func(t *testing.T) {
		f := newTransitionFixture("verified")
		record := newVerified()
		f.payments.On("FindByPaymentID", mock.Anything, record.PaymentID).Return(record, nil)

		_, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionRefund, staffActor, "", nil)
		assert.ErrorIs(t, err, apperrors.ErrMissingField)
		f.payments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestApply_DisputeClearsReceiptThenVerifyRestoresIt(t *testing.T) {
	f := newTransitionFixture("verified")
	now := time.Now().UTC()
	record := codPendingRecord()
	record.Status = model.StatusVerified
	record.ReceivedAt = &now
	record.IsAdminVerified = true
	by := "staff-1"
	record.AdminVerifiedBy = &by
	record.AdminVerificationDate = &now
	f.expectRead(record)
	f.expectWrite()
	f.invoices.On("Generate", mock.Anything, "pay_cod1").Return(&model.Invoice{}, nil)

	disputed, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionDispute, staffActor, "amount contested", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisputed, disputed.Status)
	assert.Nil(t, disputed.ReceivedAt)
	assert.False(t, disputed.IsAdminVerified)
	assert.NoError(t, disputed.CheckDerivedInvariants())

	resolved, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionVerify, staffActor, "resolved", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, resolved.Status)
	assert.NotNil(t, resolved.ReceivedAt)
	assert.True(t, resolved.IsAdminVerified)
	assert.NoError(t, resolved.CheckDerivedInvariants())
}

func TestApply_RejectClearsDerivedFields(t *testing.T) {
	f := newTransitionFixture("verified")
	now := time.Now().UTC()
	record := codPendingRecord()
	record.Status = model.StatusReceived
	record.ReceivedAt = &now
	f.expectRead(record)
	f.expectWrite()

	updated, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionReject, staffActor, "no show", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, updated.Status)
	assert.Nil(t, updated.ReceivedAt)
	assert.Nil(t, updated.LiveKey)
	f.invoices.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	f.invoices.AssertNotCalled(t, "Void", mock.Anything, mock.Anything)
}

func TestApply_BulkActionKeepsBulkNameInLog(t *testing.T) {
	f := newTransitionFixture("verified")
	now := time.Now().UTC()
	record := codPendingRecord()
	record.Status = model.StatusReceived
	record.ReceivedAt = &now
	f.expectRead(record)
	f.payments.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.logRepo.On("Append", mock.Anything, mock.MatchedBy(func(e *model.VerificationLogEntry) bool {
		return e.Action == model.ActionBulkVerify && e.PrevStatus == model.StatusReceived && e.NewStatus == model.StatusVerified
	})).Return(nil)
	f.invoices.On("Generate", mock.Anything, "pay_cod1").Return(&model.Invoice{}, nil)

	updated, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionBulkVerify, staffActor, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, updated.Status)
	f.logRepo.AssertExpectations(t)
}

func TestApply_InvalidatesSummaryRowForCreationDay(t *testing.T) {
	f := newTransitionFixture("verified")
	received := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	record := codPendingRecord()
	record.Status = model.StatusReceived
	record.ReceivedAt = &received
	record.CreatedAt = received
	f.expectRead(record)
	f.expectWrite()
	f.invoices.On("Generate", mock.Anything, "pay_cod1").Return(&model.Invoice{}, nil)

	// Verifying days later must drop the materialized row for the
	// creation day; the rollup job never revisits days that old.
	_, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionVerify, staffActor, "", nil)
	require.NoError(t, err)
	f.summaries.AssertCalled(t, "DeleteByDate", mock.Anything, "2026-08-25")
}

func TestApply_AppointmentHeldUntilVerified(t *testing.T) {
	f := newTransitionFixture("verified")
	record := codPendingRecord()
	record.OrderKind = model.KindAppointment
	f.expectRead(record)
	f.expectWrite()

	updated, err := f.svc.Apply(context.Background(), "pay_cod1", model.ActionMarkReceived, staffActor, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, updated.Status)
	f.invoices.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}
