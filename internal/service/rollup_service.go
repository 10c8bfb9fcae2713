package service

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"medipay/internal/auth"
	"medipay/internal/cache"
	"medipay/internal/gateway"
	"medipay/internal/model"
	"medipay/internal/repository"
)

// staleCutoff is how long an online payment may sit pending before the
// sweep asks the gateway what happened to it.
const staleCutoff = 2 * time.Minute

// RollupService owns the scheduled work: materializing daily summaries
// and resolving online payments whose gateway outcome was lost to a
// timeout.
type RollupService struct {
	payments    repository.PaymentRepository
	summaries   repository.SummaryRepository
	transitions TransitionService
	gw          gateway.Adapter
	cache       *cache.Client
	cronSpec    string
	cron        *cron.Cron
}

// NewRollupService creates a new rollup service.
func NewRollupService(
	payments repository.PaymentRepository,
	summaries repository.SummaryRepository,
	transitions TransitionService,
	gw gateway.Adapter,
	cacheClient *cache.Client,
	cronSpec string,
) *RollupService {
	return &RollupService{
		payments:    payments,
		summaries:   summaries,
		transitions: transitions,
		gw:          gw,
		cache:       cacheClient,
		cronSpec:    cronSpec,
	}
}

// Start schedules the rollup job. Returns an error only for an invalid
// cron spec.
func (s *RollupService) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.cronSpec, func() {
		s.Run(context.Background())
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	log.Printf("rollup scheduler started (%s)", s.cronSpec)
	return nil
}

// Stop halts the scheduler.
func (s *RollupService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Run performs one pass: yesterday's final rollup, today's interim one,
// and the stale-payment sweep.
func (s *RollupService) Run(ctx context.Context) {
	now := time.Now().UTC()
	for _, day := range []time.Time{now.AddDate(0, 0, -1), now} {
		if err := s.RecomputeDate(ctx, day); err != nil {
			log.Printf("rollup %s: %v", day.Format(dateLayout), err)
		}
	}
	s.ResolveStalePending(ctx)
}

// RecomputeDate rebuilds and persists the summary for one day.
func (s *RollupService) RecomputeDate(ctx context.Context, day time.Time) error {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	records, err := s.payments.Search(ctx, repository.SearchFilter{From: &from, To: &to})
	if err != nil {
		return err
	}
	date := from.Format(dateLayout)
	summary := BuildDailySummary(date, records)
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return err
	}
	s.cache.Delete(ctx, summaryCacheKey(date))
	return nil
}

// ResolveStalePending asks the gateway about online payments stuck in
// pending with a payment id on file. Capture confirmed means the record
// advances exactly as a live callback would have moved it; anything else
// stays pending for the next sweep.
func (s *RollupService) ResolveStalePending(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-staleCutoff)
	records, err := s.payments.ListStalePendingOnline(ctx, cutoff, 100)
	if err != nil {
		log.Printf("stale sweep: %v", err)
		return
	}
	for i := range records {
		record := &records[i]
		if record.GatewayPaymentID == "" {
			// The gateway never told us a payment id; only the customer's
			// retry or a manual fetch by staff can resolve this one.
			continue
		}
		payment, err := s.gw.FetchPayment(ctx, record.GatewayPaymentID)
		if err != nil {
			log.Printf("stale sweep %s: fetch: %v", record.PaymentID, err)
			continue
		}
		if !payment.Captured() {
			continue
		}
		_, err = s.transitions.Apply(ctx, record.PaymentID, model.ActionMarkReceived, auth.System,
			"resolved by reconciliation sweep", &TransitionContext{
				GatewayPaymentID:    payment.GatewayPaymentID,
				FetchVerified:       true,
				GatewayResponseBlob: payment.Raw,
			})
		if err != nil {
			log.Printf("stale sweep %s: transition: %v", record.PaymentID, err)
			continue
		}
		log.Printf("stale sweep: %s marked received from gateway fetch", record.PaymentID)
	}
}
