package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"medipay/internal/auth"
	apperrors "medipay/internal/errors"
	"medipay/internal/model"
	"medipay/internal/repository"
)

type reconFixture struct {
	payments    *MockPaymentRepository
	logRepo     *MockLogRepository
	summaries   *MockSummaryRepository
	transitions *MockTransitionService
	svc         ReconciliationService
}

func newReconFixture() *reconFixture {
	f := &reconFixture{
		payments:    new(MockPaymentRepository),
		logRepo:     new(MockLogRepository),
		summaries:   new(MockSummaryRepository),
		transitions: new(MockTransitionService),
	}
	f.svc = NewReconciliationService(f.payments, f.logRepo, f.summaries, f.transitions, nil)
	return f
}

func TestExportRow(t *testing.T) {
	created := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)
	verifiedAt := created.Add(time.Hour)
	by := "staff-1"
	record := &model.PaymentRecord{
		PaymentID:             "pay_exp1",
		UserID:                "u-22",
		OrderKind:             model.KindMedicine,
		Method:                model.MethodOnline,
		TotalAmount:           decimal.RequireFromString("1234.5"),
		Status:                model.StatusVerified,
		IsAdminVerified:       true,
		AdminVerifiedBy:       &by,
		AdminVerificationDate: &verifiedAt,
		GatewayPaymentID:      "rzp_pay_9",
		Customer:              model.CustomerSnapshot{Name: "Asha Rao", Phone: "9800010001"},
	}
	record.CreatedAt = created

	row := ExportRow(record)
	assert.Equal(t, []string{
		"pay_exp1", "u-22", "medicine", "online", "1234.50", "verified",
		"Yes", "2026-08-30T09:15:00Z", "rzp_pay_9", "Asha Rao", "9800010001",
	}, row)

	record.IsAdminVerified = false
	assert.Equal(t, "No", ExportRow(record)[6])
}

func TestExportCSV(t *testing.T) {
	f := newReconFixture()
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	records := []model.PaymentRecord{
		{
			PaymentID:   "pay_a",
			UserID:      "u-1",
			OrderKind:   model.KindLabTest,
			Method:      model.MethodCash,
			TotalAmount: decimal.RequireFromString("300"),
			Status:      model.StatusReceived,
			Customer:    model.CustomerSnapshot{Name: "Ravi Kumar", Phone: "9800010002"},
		},
	}
	records[0].CreatedAt = created

	f.payments.On("Search", mock.Anything, mock.MatchedBy(func(filter repository.SearchFilter) bool {
		return filter.Limit == 500
	})).Return(records, nil)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportCSV(context.Background(), repository.SearchFilter{}, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"Payment ID", "User", "Type", "Method", "Amount", "Status",
		"Verified", "Date Created", "Gateway ID", "Customer Name", "Phone",
	}, rows[0])
	assert.Equal(t, "pay_a", rows[1][0])
	assert.Equal(t, "300.00", rows[1][4])
	assert.Equal(t, "No", rows[1][6])
}

func TestBulkTransition_PartialSuccess(t *testing.T) {
	f := newReconFixture()
	actor := auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}

	f.transitions.On("Apply", mock.Anything, "pay_ok", model.ActionBulkVerify, actor, "", (*TransitionContext)(nil)).
		Return(&model.PaymentRecord{PaymentID: "pay_ok", Status: model.StatusVerified}, nil)
	f.transitions.On("Apply", mock.Anything, "pay_bad", model.ActionBulkVerify, actor, "", (*TransitionContext)(nil)).
		Return(nil, apperrors.ErrIllegalTransition)

	outcomes := f.svc.BulkTransition(context.Background(), []string{"pay_ok", "pay_bad"}, model.ActionVerify, actor, "")
	require.Len(t, outcomes, 2)

	assert.True(t, outcomes[0].OK)
	assert.Equal(t, model.StatusVerified, outcomes[0].Status)

	assert.False(t, outcomes[1].OK)
	assert.Equal(t, "ILLEGAL_TRANSITION", outcomes[1].Code)
	assert.NotEmpty(t, outcomes[1].Error)
	f.transitions.AssertExpectations(t)
}

func TestBuildDailySummary(t *testing.T) {
	records := []model.PaymentRecord{
		{Status: model.StatusPending, Method: model.MethodOnline, OrderKind: model.KindMedicine, TotalAmount: decimal.RequireFromString("999")},
		{Status: model.StatusReceived, Method: model.MethodCOD, OrderKind: model.KindMedicine, TotalAmount: decimal.RequireFromString("250")},
		{Status: model.StatusVerified, Method: model.MethodOnline, OrderKind: model.KindLabTest, TotalAmount: decimal.RequireFromString("800")},
		{Status: model.StatusRefunded, Method: model.MethodUPI, OrderKind: model.KindAppointment, TotalAmount: decimal.RequireFromString("400")},
		{Status: model.StatusFailed, Method: model.MethodCash, OrderKind: model.KindOther, TotalAmount: decimal.RequireFromString("100")},
	}

	summary := BuildDailySummary("2026-08-30", records)

	assert.Equal(t, "2026-08-30", summary.Date)
	assert.Equal(t, 1, summary.PendingCount)
	assert.Equal(t, 1, summary.ReceivedCount)
	assert.Equal(t, 1, summary.VerifiedCount)
	assert.Equal(t, 1, summary.RefundedCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 0, summary.DisputedCount)

	// Settled statuses only: the pending online 999 and failed cash 100
	// never reach the money totals.
	assert.True(t, summary.OnlineTotal.Equal(decimal.RequireFromString("800")))
	assert.True(t, summary.CodTotal.Equal(decimal.RequireFromString("250")))
	assert.True(t, summary.UpiTotal.Equal(decimal.RequireFromString("400")))
	assert.True(t, summary.CashTotal.IsZero())
	assert.True(t, summary.MedicineTotal.Equal(decimal.RequireFromString("250")))
	assert.True(t, summary.LabTestTotal.Equal(decimal.RequireFromString("800")))
	assert.True(t, summary.AppointmentTotal.Equal(decimal.RequireFromString("400")))
	assert.True(t, summary.OtherTotal.IsZero())
}

func TestDailySummary_ClosedDayServedFromTable(t *testing.T) {
	f := newReconFixture()
	stored := &model.DailySummary{Date: "2026-08-30", VerifiedCount: 7}
	f.summaries.On("FindByDate", mock.Anything, "2026-08-30").Return(stored, nil)

	got, err := f.svc.DailySummary(context.Background(), "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, 7, got.VerifiedCount)
	f.payments.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	f.summaries.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestDailySummary_TodayRecomputedAndStored(t *testing.T) {
	f := newReconFixture()
	today := time.Now().UTC().Format("2006-01-02")
	records := []model.PaymentRecord{
		{Status: model.StatusReceived, Method: model.MethodCash, OrderKind: model.KindOther, TotalAmount: decimal.RequireFromString("60")},
	}

	f.payments.On("Search", mock.Anything, mock.MatchedBy(func(filter repository.SearchFilter) bool {
		return filter.From != nil && filter.To != nil && filter.To.Sub(*filter.From) == 24*time.Hour
	})).Return(records, nil)
	f.summaries.On("Upsert", mock.Anything, mock.AnythingOfType("*model.DailySummary")).Return(nil)

	got, err := f.svc.DailySummary(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReceivedCount)
	assert.True(t, got.CashTotal.Equal(decimal.RequireFromString("60")))
	f.summaries.AssertExpectations(t)
	f.summaries.AssertNotCalled(t, "FindByDate", mock.Anything, mock.Anything)
}

func TestDailySummary_RejectsBadDate(t *testing.T) {
	f := newReconFixture()
	_, err := f.svc.DailySummary(context.Background(), "30-08-2026")
	assert.ErrorIs(t, err, apperrors.ErrMissingField)
}

func TestListPendingVerifications_ClampsLimit(t *testing.T) {
	f := newReconFixture()
	f.payments.On("ListPendingVerifications", mock.Anything, 50, 0).Return([]model.PaymentRecord{}, nil)

	_, err := f.svc.ListPendingVerifications(context.Background(), 0, 0)
	require.NoError(t, err)
	_, err = f.svc.ListPendingVerifications(context.Background(), 9999, 0)
	require.NoError(t, err)
	f.payments.AssertExpectations(t)
}

func TestHistory_UnknownPayment(t *testing.T) {
	f := newReconFixture()
	f.payments.On("FindByPaymentID", mock.Anything, "pay_missing").Return(nil, gorm.ErrRecordNotFound)

	_, err := f.svc.History(context.Background(), "pay_missing")
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
	f.logRepo.AssertNotCalled(t, "ListByPaymentRecordID", mock.Anything, mock.Anything)
}
