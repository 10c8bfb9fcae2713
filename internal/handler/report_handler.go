package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"medipay/internal/errors"
	"medipay/internal/model"
	"medipay/internal/repository"
	"medipay/internal/service"
)

// ReportHandler handles admin report endpoints.
type ReportHandler struct {
	recon service.ReconciliationService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(recon service.ReconciliationService) *ReportHandler {
	return &ReportHandler{recon: recon}
}

// Daily godoc
// @Summary Daily payment rollup
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} model.DailySummary
// @Failure 400 {object} errors.ErrorResponse
// @Router /reports/daily [get]
func (h *ReportHandler) Daily(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	summary, err := h.recon.DailySummary(c.Request().Context(), date)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// ExportCSV godoc
// @Summary Export matching payments as CSV
// @Tags reports
// @Produce text/csv
// @Security BearerAuth
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD, exclusive)"
// @Param kind query string false "Order kind"
// @Param method query string false "Payment method"
// @Param status query string false "Status"
// @Param phone query string false "Customer phone"
// @Success 200 {string} string "CSV rows"
// @Router /reports/export.csv [get]
func (h *ReportHandler) ExportCSV(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	// Export pages through everything that matches.
	filter.Limit = 0
	filter.Offset = 0

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="payments.csv"`)
	res.WriteHeader(http.StatusOK)

	return h.recon.ExportCSV(c.Request().Context(), filter, res)
}

// parseFilter builds a search filter from common query params.
func parseFilter(c echo.Context) (repository.SearchFilter, error) {
	filter := repository.SearchFilter{
		Kind:          model.OrderKind(c.QueryParam("kind")),
		Method:        model.PaymentMethod(c.QueryParam("method")),
		Status:        model.PaymentStatus(c.QueryParam("status")),
		CustomerPhone: c.QueryParam("phone"),
	}
	filter.Limit, filter.Offset = pageParams(c)

	for param, dest := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.QueryParam(param)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid " + param + " date, expected YYYY-MM-DD",
				Code:  "INVALID_DATE",
			})
		}
		parsed = parsed.UTC()
		*dest = &parsed
	}
	return filter, nil
}

func pageParams(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
