package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the provider-side order created before checkout.
type Order struct {
	GatewayOrderID string
	Raw            string
}

// Payment is the provider's view of a captured payment. Raw carries the
// verbatim response blob; callers persist it without parsing.
type Payment struct {
	GatewayPaymentID string
	Status           string
	Amount           decimal.Decimal
	Method           string
	CreatedAt        time.Time
	Raw              string
}

// Captured reports whether the provider considers the payment collected.
func (p *Payment) Captured() bool {
	return p.Status == "captured"
}

// Adapter abstracts the online-payment provider. The core consumes only
// these three capabilities and never parses provider-specific formats.
type Adapter interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Order, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	FetchPayment(ctx context.Context, gatewayPaymentID string) (*Payment, error)
}
