package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"medipay/internal/auth"
	"medipay/internal/cache"
	apperrors "medipay/internal/errors"
	"medipay/internal/model"
	"medipay/internal/repository"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z"
	summaryCacheTTL = 10 * time.Minute
	exportPageSize  = 500
)

// exportHeaders is the fixed CSV schema consumed by the admin tooling.
var exportHeaders = []string{
	"Payment ID", "User", "Type", "Method", "Amount", "Status",
	"Verified", "Date Created", "Gateway ID", "Customer Name", "Phone",
}

// BulkOutcome is the per-id result of a bulk transition.
type BulkOutcome struct {
	PaymentID string              `json:"payment_id"`
	OK        bool                `json:"ok"`
	Status    model.PaymentStatus `json:"status,omitempty"`
	Error     string              `json:"error,omitempty"`
	Code      string              `json:"code,omitempty"`
}

// ReconciliationService is the admin-facing read model plus the bulk
// transition driver. All writes still go through the state machine.
type ReconciliationService interface {
	Get(ctx context.Context, paymentID string) (*model.PaymentRecord, error)
	History(ctx context.Context, paymentID string) ([]model.VerificationLogEntry, error)
	ListPendingVerifications(ctx context.Context, limit, offset int) ([]model.PaymentRecord, error)
	Search(ctx context.Context, filter repository.SearchFilter) ([]model.PaymentRecord, error)
	DailySummary(ctx context.Context, date string) (*model.DailySummary, error)
	ExportCSV(ctx context.Context, filter repository.SearchFilter, w io.Writer) error
	BulkTransition(ctx context.Context, paymentIDs []string, action model.TransitionAction, actor auth.Actor, notes string) []BulkOutcome
}

type reconciliationService struct {
	payments    repository.PaymentRepository
	logEntries  repository.VerificationLogRepository
	summaries   repository.SummaryRepository
	transitions TransitionService
	cache       *cache.Client
}

// NewReconciliationService creates a new reconciliation service.
func NewReconciliationService(
	payments repository.PaymentRepository,
	logEntries repository.VerificationLogRepository,
	summaries repository.SummaryRepository,
	transitions TransitionService,
	cacheClient *cache.Client,
) ReconciliationService {
	return &reconciliationService{
		payments:    payments,
		logEntries:  logEntries,
		summaries:   summaries,
		transitions: transitions,
		cache:       cacheClient,
	}
}

// Get returns a single record by public payment id.
func (s *reconciliationService) Get(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	record, err := s.payments.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return record, nil
}

// History returns a payment's ordered audit trail.
func (s *reconciliationService) History(ctx context.Context, paymentID string) ([]model.VerificationLogEntry, error) {
	record, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.logEntries.ListByPaymentRecordID(ctx, record.ID)
}

// ListPendingVerifications returns received records awaiting sign-off.
func (s *reconciliationService) ListPendingVerifications(ctx context.Context, limit, offset int) ([]model.PaymentRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.payments.ListPendingVerifications(ctx, limit, offset)
}

// Search lists records matching the filter.
func (s *reconciliationService) Search(ctx context.Context, filter repository.SearchFilter) ([]model.PaymentRecord, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	return s.payments.Search(ctx, filter)
}

// DailySummary serves the rollup for a date: cache, then the materialized
// table, recomputing and writing through when missing or still mutable
// (today's numbers keep moving until the day closes).
func (s *reconciliationService) DailySummary(ctx context.Context, date string) (*model.DailySummary, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", apperrors.ErrMissingField)
	}

	var cached model.DailySummary
	if s.cache.GetJSON(ctx, summaryCacheKey(date), &cached) {
		return &cached, nil
	}

	today := time.Now().UTC().Format(dateLayout)
	if date != today {
		if stored, err := s.summaries.FindByDate(ctx, date); err == nil {
			s.cache.SetJSON(ctx, summaryCacheKey(date), stored, summaryCacheTTL)
			return stored, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	summary, err := s.recompute(ctx, day)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, summaryCacheKey(date), summary, summaryCacheTTL)
	return summary, nil
}

func (s *reconciliationService) recompute(ctx context.Context, day time.Time) (*model.DailySummary, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	records, err := s.payments.Search(ctx, repository.SearchFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	summary := BuildDailySummary(day.Format(dateLayout), records)
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// ExportCSV streams the fixed-schema export for matching records.
func (s *reconciliationService) ExportCSV(ctx context.Context, filter repository.SearchFilter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}

	filter.Limit = exportPageSize
	filter.Offset = 0
	for {
		records, err := s.payments.Search(ctx, filter)
		if err != nil {
			return err
		}
		for i := range records {
			if err := cw.Write(ExportRow(&records[i])); err != nil {
				return err
			}
		}
		if len(records) < exportPageSize {
			break
		}
		filter.Offset += exportPageSize
	}
	cw.Flush()
	return cw.Error()
}

// ExportRow renders one record as a CSV export row.
func ExportRow(r *model.PaymentRecord) []string {
	verified := "No"
	if r.IsAdminVerified {
		verified = "Yes"
	}
	return []string{
		r.PaymentID,
		r.UserID,
		string(r.OrderKind),
		string(r.Method),
		r.TotalAmount.StringFixed(2),
		string(r.Status),
		verified,
		r.CreatedAt.UTC().Format(timestampLayout),
		r.GatewayPaymentID,
		r.Customer.Name,
		r.Customer.Phone,
	}
}

// BulkTransition applies one action across many records, one state
// machine call per id. Partial success is expected; each id reports its
// own outcome. Verify and mark_received are logged with their bulk
// action names.
func (s *reconciliationService) BulkTransition(ctx context.Context, paymentIDs []string, action model.TransitionAction, actor auth.Actor, notes string) []BulkOutcome {
	logged := action
	switch action {
	case model.ActionVerify:
		logged = model.ActionBulkVerify
	case model.ActionMarkReceived:
		logged = model.ActionBulkMarkReceived
	}

	outcomes := make([]BulkOutcome, 0, len(paymentIDs))
	for _, id := range paymentIDs {
		record, err := s.transitions.Apply(ctx, id, logged, actor, notes, nil)
		if err != nil {
			httpErr := apperrors.MapErrorToHTTP(err)
			outcomes = append(outcomes, BulkOutcome{
				PaymentID: id,
				OK:        false,
				Error:     err.Error(),
				Code:      httpErr.Code,
			})
			continue
		}
		outcomes = append(outcomes, BulkOutcome{
			PaymentID: id,
			OK:        true,
			Status:    record.Status,
		})
	}
	return outcomes
}

// BuildDailySummary folds a day's records into the rollup row.
func BuildDailySummary(date string, records []model.PaymentRecord) *model.DailySummary {
	summary := &model.DailySummary{Date: date, ComputedAt: time.Now().UTC()}
	for i := range records {
		r := &records[i]
		switch r.Status {
		case model.StatusPending:
			summary.PendingCount++
		case model.StatusReceived:
			summary.ReceivedCount++
		case model.StatusVerified:
			summary.VerifiedCount++
		case model.StatusFailed:
			summary.FailedCount++
		case model.StatusRefunded:
			summary.RefundedCount++
		case model.StatusDisputed:
			summary.DisputedCount++
		}
		if !r.Status.IsSettled() {
			continue
		}
		switch r.Method {
		case model.MethodOnline:
			summary.OnlineTotal = summary.OnlineTotal.Add(r.TotalAmount)
		case model.MethodCOD:
			summary.CodTotal = summary.CodTotal.Add(r.TotalAmount)
		case model.MethodCash:
			summary.CashTotal = summary.CashTotal.Add(r.TotalAmount)
		case model.MethodCard:
			summary.CardTotal = summary.CardTotal.Add(r.TotalAmount)
		case model.MethodUPI:
			summary.UpiTotal = summary.UpiTotal.Add(r.TotalAmount)
		}
		switch r.OrderKind {
		case model.KindMedicine:
			summary.MedicineTotal = summary.MedicineTotal.Add(r.TotalAmount)
		case model.KindLabTest:
			summary.LabTestTotal = summary.LabTestTotal.Add(r.TotalAmount)
		case model.KindAppointment:
			summary.AppointmentTotal = summary.AppointmentTotal.Add(r.TotalAmount)
		case model.KindConsultation:
			summary.ConsultationTotal = summary.ConsultationTotal.Add(r.TotalAmount)
		case model.KindHomeCollection:
			summary.HomeCollectionTotal = summary.HomeCollectionTotal.Add(r.TotalAmount)
		case model.KindOther:
			summary.OtherTotal = summary.OtherTotal.Add(r.TotalAmount)
		}
	}
	return summary
}

func summaryCacheKey(date string) string {
	return "summary:" + date
}
