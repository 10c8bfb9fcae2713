package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrAmountNegative is returned when any supplied amount is below zero.
	ErrAmountNegative = errors.New("amount must not be negative")
	// ErrAmountMismatch is returned when a caller-supplied total disagrees with base + fees.
	ErrAmountMismatch = errors.New("total amount does not equal base amount plus fees")
	// ErrUnknownKind is returned for an unsupported order kind.
	ErrUnknownKind = errors.New("unknown order kind")
	// ErrUnknownMethod is returned for an unsupported payment method.
	ErrUnknownMethod = errors.New("unknown payment method")
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrPaymentNotFound is returned when no record matches the payment id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrIllegalTransition is returned when the requested action is not
	// allowed from the record's current status.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrActorNotStaff is returned when a staff-only action is attempted
	// by a non-staff actor.
	ErrActorNotStaff = errors.New("action requires a staff actor")
	// ErrGatewayTimeout is returned when the payment gateway does not
	// answer within the configured deadline.
	ErrGatewayTimeout = errors.New("gateway timeout")
	// ErrGatewaySignatureInvalid is returned when the gateway callback
	// signature fails verification.
	ErrGatewaySignatureInvalid = errors.New("gateway signature invalid")
	// ErrGatewayUnavailable is returned for any other gateway failure.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrPaymentNotSettled is returned when invoice generation is requested
	// for a payment that is neither received nor verified.
	ErrPaymentNotSettled = errors.New("payment not settled")
	// ErrInvariantViolation is fatal: a transition would commit a record
	// whose derived fields contradict its status.
	ErrInvariantViolation = errors.New("invariant violation")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrAmountNegative):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "AMOUNT_NEGATIVE")
	case errors.Is(err, ErrAmountMismatch):
		return NewHTTPError(http.StatusConflict, err.Error(), "AMOUNT_MISMATCH")
	case errors.Is(err, ErrUnknownKind):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "UNKNOWN_KIND")
	case errors.Is(err, ErrUnknownMethod):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "UNKNOWN_METHOD")
	case errors.Is(err, ErrMissingField):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "MISSING_FIELD")
	case errors.Is(err, ErrPaymentNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, ErrIllegalTransition):
		return NewHTTPError(http.StatusConflict, err.Error(), "ILLEGAL_TRANSITION")
	case errors.Is(err, ErrActorNotStaff):
		return NewHTTPError(http.StatusForbidden, err.Error(), "ACTOR_NOT_STAFF")
	case errors.Is(err, ErrGatewayTimeout):
		return NewHTTPError(http.StatusBadGateway, err.Error(), "GATEWAY_TIMEOUT")
	case errors.Is(err, ErrGatewaySignatureInvalid):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "GATEWAY_SIGNATURE_INVALID")
	case errors.Is(err, ErrGatewayUnavailable):
		return NewHTTPError(http.StatusBadGateway, err.Error(), "GATEWAY_UNAVAILABLE")
	case errors.Is(err, ErrPaymentNotSettled):
		return NewHTTPError(http.StatusConflict, err.Error(), "PAYMENT_NOT_SETTLED")
	case errors.Is(err, ErrInvariantViolation):
		return NewHTTPError(http.StatusInternalServerError, err.Error(), "INVARIANT_VIOLATION")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
