package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"medipay/internal/auth"
	"medipay/internal/config"
	"medipay/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	paymentHandler *handler.PaymentHandler,
	reportHandler *handler.ReportHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Checkout-facing routes; no token, idempotent by construction.
	api.POST("/payments/intake", paymentHandler.Intake)
	api.POST("/payments/:id/gateway-order", paymentHandler.CreateGatewayOrder)
	api.POST("/payments/:id/callback", paymentHandler.Callback)

	// Staff routes (require JWT from the hospital auth service).
	secured := api.Group("", auth.Middleware(jwtService))
	secured.GET("/payments", paymentHandler.List)
	secured.GET("/payments/:id", paymentHandler.Get)
	secured.GET("/payments/:id/log", paymentHandler.Log)
	secured.POST("/payments/:id/transition", paymentHandler.Transition)
	secured.POST("/payments/:id/invoice", paymentHandler.Invoice)
	secured.POST("/payments/bulk-transition", paymentHandler.BulkTransition)

	secured.GET("/reports/daily", reportHandler.Daily)
	secured.GET("/reports/export.csv", reportHandler.ExportCSV)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
