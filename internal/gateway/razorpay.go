package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"

	apperrors "medipay/internal/errors"
)

var paise = decimal.NewFromInt(100)

// RazorpayAdapter implements Adapter against the Razorpay API. The SDK
// client is not context-aware, so every call runs under a bounded timeout
// and no database lock is ever held across one.
type RazorpayAdapter struct {
	client  *razorpay.Client
	secret  string
	timeout time.Duration
}

// NewRazorpayAdapter creates an adapter with the given API credentials.
func NewRazorpayAdapter(keyID, keySecret string, timeout time.Duration) *RazorpayAdapter {
	return &RazorpayAdapter{
		client:  razorpay.NewClient(keyID, keySecret),
		secret:  keySecret,
		timeout: timeout,
	}
}

// CreateOrder creates a provider order for the given amount. Razorpay
// takes amounts in paise.
func (a *RazorpayAdapter) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Order, error) {
	notes := map[string]interface{}{}
	for k, v := range metadata {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   amount.Mul(paise).IntPart(),
		"currency": currency,
		"notes":    notes,
	}

	body, err := a.call(ctx, func() (map[string]interface{}, error) {
		return a.client.Order.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: order response without id", apperrors.ErrGatewayUnavailable)
	}
	raw, _ := json.Marshal(body)
	return &Order{GatewayOrderID: id, Raw: string(raw)}, nil
}

// VerifySignature checks the checkout callback signature:
// HMAC-SHA256 over "order_id|payment_id" with the key secret.
func (a *RazorpayAdapter) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature, a.secret)
}

// FetchPayment retrieves the provider's record of a payment.
func (a *RazorpayAdapter) FetchPayment(ctx context.Context, gatewayPaymentID string) (*Payment, error) {
	body, err := a.call(ctx, func() (map[string]interface{}, error) {
		return a.client.Payment.Fetch(gatewayPaymentID, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(body)
	p := &Payment{
		GatewayPaymentID: gatewayPaymentID,
		Raw:              string(raw),
	}
	if s, ok := body["status"].(string); ok {
		p.Status = s
	}
	if m, ok := body["method"].(string); ok {
		p.Method = m
	}
	if amt, ok := body["amount"].(float64); ok {
		p.Amount = decimal.NewFromFloat(amt).Div(paise).Round(2)
	}
	if created, ok := body["created_at"].(float64); ok {
		p.CreatedAt = time.Unix(int64(created), 0).UTC()
	}
	return p, nil
}

type callResult struct {
	body map[string]interface{}
	err  error
}

// call runs fn with the adapter timeout applied on top of ctx.
func (a *RazorpayAdapter) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ch := make(chan callResult, 1)
	go func() {
		body, err := fn()
		ch <- callResult{body: body, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrGatewayUnavailable, res.err)
		}
		return res.body, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.ErrGatewayTimeout
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGatewayUnavailable, ctx.Err())
	}
}

// VerifyCheckoutSignature is the raw HMAC check, exported for callers
// that only have credentials and no adapter.
func VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
