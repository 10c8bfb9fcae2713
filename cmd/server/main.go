package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"medipay/docs"
	"medipay/internal/auth"
	"medipay/internal/cache"
	"medipay/internal/config"
	"medipay/internal/db"
	"medipay/internal/gateway"
	"medipay/internal/handler"
	"medipay/internal/model"
	"medipay/internal/repository"
	"medipay/internal/router"
	"medipay/internal/service"
)

// @title MediPay Reconciliation API
// @version 1.0
// @description Payment and invoice reconciliation core for the hospital portal: idempotent intake, verification state machine, invoice generation, and admin reports.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if err := gormDB.AutoMigrate(
		&model.PaymentRecord{},
		&model.Invoice{},
		&model.InvoiceLineItem{},
		&model.VerificationLogEntry{},
		&model.DailySummary{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	gw := gateway.NewRazorpayAdapter(cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout)

	// Repositories
	paymentRepo := repository.NewPaymentRepository(gormDB)
	invoiceRepo := repository.NewInvoiceRepository(gormDB)
	logRepo := repository.NewVerificationLogRepository(gormDB)
	summaryRepo := repository.NewSummaryRepository(gormDB)
	txManager := repository.NewTxManager(gormDB)

	// Services
	policy := service.NewSettlePolicy(cfg.GenerateAppointmentOn)
	seller := model.PartySnapshot{Name: cfg.SellerName, Address: cfg.SellerAddress}
	invoiceService := service.NewInvoiceService(paymentRepo, invoiceRepo, cfg.InvoiceNumberPrefix, seller)
	intakeService := service.NewIntakeService(paymentRepo, txManager, gw)
	transitionService := service.NewTransitionService(paymentRepo, txManager, gw, invoiceService, summaryRepo, policy, cacheClient)
	reconService := service.NewReconciliationService(paymentRepo, logRepo, summaryRepo, transitionService, cacheClient)
	rollupService := service.NewRollupService(paymentRepo, summaryRepo, transitionService, gw, cacheClient, cfg.DailyRollupCron)

	if err := rollupService.Start(); err != nil {
		log.Fatalf("rollup scheduler: %v", err)
	}
	defer rollupService.Stop()

	// Handlers
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	paymentHandler := handler.NewPaymentHandler(intakeService, transitionService, invoiceService, reconService, cfg.GatewayKeyID)
	reportHandler := handler.NewReportHandler(reconService)

	router.Register(e, cfg, jwtService, paymentHandler, reportHandler)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
