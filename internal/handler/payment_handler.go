package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"medipay/internal/auth"
	"medipay/internal/errors"
	"medipay/internal/model"
	"medipay/internal/service"
)

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	intake       service.IntakeService
	transitions  service.TransitionService
	invoices     service.InvoiceGenerator
	recon        service.ReconciliationService
	gatewayKeyID string
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(
	intake service.IntakeService,
	transitions service.TransitionService,
	invoices service.InvoiceGenerator,
	recon service.ReconciliationService,
	gatewayKeyID string,
) *PaymentHandler {
	return &PaymentHandler{
		intake:       intake,
		transitions:  transitions,
		invoices:     invoices,
		recon:        recon,
		gatewayKeyID: gatewayKeyID,
	}
}

// OrderRefRequest identifies the business order being paid for.
type OrderRefRequest struct {
	Kind       string `json:"kind" validate:"required"`
	ExternalID string `json:"external_id" validate:"required"`
}

// CustomerSnapshotRequest is the buyer's contact details at payment time.
type CustomerSnapshotRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address"`
}

// IntakeRequest opens (or re-fetches) a payment for an order.
type IntakeRequest struct {
	OrderRef       OrderRefRequest         `json:"order_ref" validate:"required"`
	Method         string                  `json:"method" validate:"required"`
	UserID         string                  `json:"user_id"`
	BaseAmount     string                  `json:"base_amount" validate:"required"`
	AdditionalFees string                  `json:"additional_fees"`
	TotalAmount    string                  `json:"total_amount"`
	Customer       CustomerSnapshotRequest `json:"customer_snapshot" validate:"required"`
}

// IntakeResponse is the slim intake reply.
type IntakeResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// Intake godoc
// @Summary Open a payment for an order (idempotent)
// @Tags payments
// @Accept json
// @Produce json
// @Param request body IntakeRequest true "Intake data"
// @Success 200 {object} IntakeResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /payments/intake [post]
func (h *PaymentHandler) Intake(c echo.Context) error {
	var req IntakeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	input := service.IntakeInput{
		OrderKind:       model.OrderKind(req.OrderRef.Kind),
		OrderExternalID: req.OrderRef.ExternalID,
		Method:          model.PaymentMethod(req.Method),
		UserID:          req.UserID,
		Customer: model.CustomerSnapshot{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		},
	}

	var err error
	if input.BaseAmount, err = decimal.NewFromString(req.BaseAmount); err != nil {
		return badAmount(c, "base_amount")
	}
	input.AdditionalFees = decimal.Zero
	if req.AdditionalFees != "" {
		if input.AdditionalFees, err = decimal.NewFromString(req.AdditionalFees); err != nil {
			return badAmount(c, "additional_fees")
		}
	}
	if req.TotalAmount != "" {
		total, err := decimal.NewFromString(req.TotalAmount)
		if err != nil {
			return badAmount(c, "total_amount")
		}
		input.TotalAmount = &total
	}

	record, err := h.intake.Intake(c.Request().Context(), input)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, IntakeResponse{
		PaymentID: record.PaymentID,
		Status:    string(record.Status),
	})
}

// GatewayOrderResponse carries what the checkout frontend needs.
type GatewayOrderResponse struct {
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

// CreateGatewayOrder godoc
// @Summary Create the provider-side order for an online payment
// @Tags payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} GatewayOrderResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments/{id}/gateway-order [post]
func (h *PaymentHandler) CreateGatewayOrder(c echo.Context) error {
	record, err := h.intake.CreateGatewayOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, GatewayOrderResponse{
		PaymentID:      record.PaymentID,
		GatewayOrderID: record.GatewayOrderID,
		Amount:         record.TotalAmount.StringFixed(2),
		Currency:       "INR",
		KeyID:          h.gatewayKeyID,
	})
}

// CallbackRequest is the checkout callback posted after the customer
// completes online payment.
type CallbackRequest struct {
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	GatewaySignature string `json:"gateway_signature" validate:"required"`
}

// Callback godoc
// @Summary Confirm an online payment from the checkout callback
// @Tags payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param request body CallbackRequest true "Gateway callback data"
// @Success 200 {object} model.PaymentRecord
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /payments/{id}/callback [post]
func (h *PaymentHandler) Callback(c echo.Context) error {
	var req CallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	record, err := h.transitions.Apply(
		c.Request().Context(),
		c.Param("id"),
		model.ActionMarkReceived,
		auth.Actor{ID: "gateway-callback"},
		"",
		&service.TransitionContext{
			GatewayPaymentID: req.GatewayPaymentID,
			GatewaySignature: req.GatewaySignature,
		},
	)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, record)
}

// TransitionRequest asks the state machine to advance a payment.
type TransitionRequest struct {
	Action  string                     `json:"action" validate:"required"`
	Notes   string                     `json:"notes"`
	Context *service.TransitionContext `json:"context"`
}

// Transition godoc
// @Summary Apply a status transition
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Param request body TransitionRequest true "Transition data"
// @Success 200 {object} model.PaymentRecord
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /payments/{id}/transition [post]
func (h *PaymentHandler) Transition(c echo.Context) error {
	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	record, err := h.transitions.Apply(
		c.Request().Context(),
		c.Param("id"),
		model.TransitionAction(req.Action),
		auth.ActorFrom(c),
		req.Notes,
		req.Context,
	)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, record)
}

// Invoice godoc
// @Summary Generate or return the invoice for a settled payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} model.Invoice
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /payments/{id}/invoice [post]
func (h *PaymentHandler) Invoice(c echo.Context) error {
	invoice, err := h.invoices.Generate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, invoice)
}

// Get godoc
// @Summary Fetch a payment record
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} model.PaymentRecord
// @Failure 404 {object} errors.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c echo.Context) error {
	record, err := h.recon.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, record)
}

// Log godoc
// @Summary Fetch a payment's audit trail
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {array} model.VerificationLogEntry
// @Failure 404 {object} errors.ErrorResponse
// @Router /payments/{id}/log [get]
func (h *PaymentHandler) Log(c echo.Context) error {
	entries, err := h.recon.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// List godoc
// @Summary Search payment records
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD, exclusive)"
// @Param kind query string false "Order kind"
// @Param method query string false "Payment method"
// @Param status query string false "Status"
// @Param phone query string false "Customer phone"
// @Param pending_verification query bool false "Only received, unverified records"
// @Success 200 {array} model.PaymentRecord
// @Router /payments [get]
func (h *PaymentHandler) List(c echo.Context) error {
	if c.QueryParam("pending_verification") == "true" {
		limit, offset := pageParams(c)
		records, err := h.recon.ListPendingVerifications(c.Request().Context(), limit, offset)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, records)
	}

	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	records, err := h.recon.Search(c.Request().Context(), filter)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, records)
}

// BulkTransitionRequest drives one action across many payments.
type BulkTransitionRequest struct {
	PaymentIDs []string `json:"payment_ids" validate:"required,min=1"`
	Action     string   `json:"action" validate:"required"`
	Notes      string   `json:"notes"`
}

// BulkTransition godoc
// @Summary Apply one action to many payments
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkTransitionRequest true "Bulk transition data"
// @Success 200 {array} service.BulkOutcome
// @Failure 400 {object} errors.ErrorResponse
// @Router /payments/bulk-transition [post]
func (h *PaymentHandler) BulkTransition(c echo.Context) error {
	var req BulkTransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	outcomes := h.recon.BulkTransition(
		c.Request().Context(),
		req.PaymentIDs,
		model.TransitionAction(req.Action),
		auth.ActorFrom(c),
		req.Notes,
	)
	return c.JSON(http.StatusOK, outcomes)
}

func badAmount(c echo.Context, field string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: "invalid " + field,
		Code:  "INVALID_AMOUNT",
	})
}

func mapError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}
