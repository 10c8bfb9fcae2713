package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"medipay/internal/auth"
	"medipay/internal/config"
	"medipay/internal/db"
	"medipay/internal/model"
	"medipay/internal/repository"
	"medipay/internal/service"
)

// seedPayment is one demo record; settled ones are advanced through the
// real state machine so every invariant and audit entry holds.
type seedPayment struct {
	kind     model.OrderKind
	external string
	method   model.PaymentMethod
	user     string
	base     string
	fees     string
	customer model.CustomerSnapshot
	settle   bool
	verify   bool
}

var fixtures = []seedPayment{
	{
		kind: model.KindMedicine, external: "M-1001", method: model.MethodCOD, user: "u-101",
		base: "540.00", fees: "0",
		customer: model.CustomerSnapshot{Name: "Asha Rao", Phone: "9800010001", Address: "12 Lake View Rd"},
		settle:   true, verify: true,
	},
	{
		kind: model.KindLabTest, external: "L-2001", method: model.MethodCash, user: "u-102",
		base: "800.00", fees: "99.00",
		customer: model.CustomerSnapshot{Name: "Vikram Shetty", Phone: "9800010002", Address: "4 Hill Cross"},
		settle:   true,
	},
	{
		kind: model.KindAppointment, external: "A-3001", method: model.MethodCash, user: "u-103",
		base: "350.00", fees: "0",
		customer: model.CustomerSnapshot{Name: "Meera Nair", Phone: "9800010003", Address: "88 Station Rd"},
	},
	{
		kind: model.KindHomeCollection, external: "H-4001", method: model.MethodCOD, user: "u-104",
		base: "250.00", fees: "50.00",
		customer: model.CustomerSnapshot{Name: "Joseph K", Phone: "9800010004", Address: "7 Green Park"},
		settle:   true,
	},
}

func main() {
	log.Println("Starting seed script...")

	_ = godotenv.Load()
	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(
		&model.PaymentRecord{},
		&model.Invoice{},
		&model.InvoiceLineItem{},
		&model.VerificationLogEntry{},
		&model.DailySummary{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	paymentRepo := repository.NewPaymentRepository(gormDB)
	invoiceRepo := repository.NewInvoiceRepository(gormDB)
	summaryRepo := repository.NewSummaryRepository(gormDB)
	txManager := repository.NewTxManager(gormDB)

	policy := service.NewSettlePolicy(cfg.GenerateAppointmentOn)
	seller := model.PartySnapshot{Name: cfg.SellerName, Address: cfg.SellerAddress}
	invoiceService := service.NewInvoiceService(paymentRepo, invoiceRepo, cfg.InvoiceNumberPrefix, seller)
	intakeService := service.NewIntakeService(paymentRepo, txManager, nil)
	transitionService := service.NewTransitionService(paymentRepo, txManager, nil, invoiceService, summaryRepo, policy, nil)

	ctx := context.Background()
	staff := auth.Actor{ID: "seed-admin", Role: auth.RoleAdmin}

	seeded := 0
	for _, fx := range fixtures {
		base, err := decimal.NewFromString(fx.base)
		if err != nil {
			log.Fatalf("bad fixture amount %q: %v", fx.base, err)
		}
		fees, err := decimal.NewFromString(fx.fees)
		if err != nil {
			log.Fatalf("bad fixture fees %q: %v", fx.fees, err)
		}

		record, err := intakeService.Intake(ctx, service.IntakeInput{
			OrderKind:       fx.kind,
			OrderExternalID: fx.external,
			Method:          fx.method,
			UserID:          fx.user,
			BaseAmount:      base,
			AdditionalFees:  fees,
			Customer:        fx.customer,
		})
		if err != nil {
			log.Printf("Skipping %s/%s: %v", fx.kind, fx.external, err)
			continue
		}
		seeded++

		if fx.settle && record.Status == model.StatusPending {
			settled, err := transitionService.Apply(ctx, record.PaymentID, model.ActionMarkReceived, staff, "", nil)
			if err != nil {
				log.Printf("Mark received %s: %v", record.PaymentID, err)
				continue
			}
			record = settled
		}
		if fx.verify && record.Status == model.StatusReceived {
			if _, err := transitionService.Apply(ctx, record.PaymentID, model.ActionVerify, staff, "", nil); err != nil {
				log.Printf("Verify %s: %v", record.PaymentID, err)
			}
		}
	}

	log.Printf("Seed completed: %d payment records", seeded)
}
