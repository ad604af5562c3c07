package payment

import (
	"context"
	"errors"
	"fmt"
)

// Gateway-side payment statuses.
const (
	GatewayPaymentCreated    = "created"
	GatewayPaymentAuthorized = "authorized"
	GatewayPaymentCaptured   = "captured"
	GatewayPaymentRefunded   = "refunded"
	GatewayPaymentFailed     = "failed"
)

// Gateway is the subset of the payment gateway's API the service relies on.
// Errors returned by its network methods wrap one of ErrGatewayRequestInvalid,
// ErrGatewayUnavailable or ErrGatewayAuthInvalid.
type Gateway interface {
	Name() string
	KeyID() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	CreateRefund(ctx context.Context, req CreateRefundRequest) (*GatewayRefund, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyWebhookSignature(rawPayload []byte, signature string) bool
}

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type GatewayPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	AmountRefunded   int64  `json:"amount_refunded"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// Settled reports whether the payment was captured or authorized.
func (p *GatewayPayment) Settled() bool {
	return p.Status == GatewayPaymentCaptured || p.Status == GatewayPaymentAuthorized
}

func (p *GatewayPayment) Captured() bool {
	return p.Status == GatewayPaymentCaptured
}

type CreateRefundRequest struct {
	PaymentID string
	Amount    int64
	// IdempotencyKey makes a retried refund request return the original
	// refund instead of issuing a second one.
	IdempotencyKey string
	Notes          map[string]string
}

type GatewayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

var (
	ErrGatewayRequestInvalid = errors.New("gateway rejected the request")
	ErrGatewayUnavailable    = errors.New("gateway unavailable")
	ErrGatewayAuthInvalid    = errors.New("gateway rejected the credentials")
)

// GatewayError carries what the gateway said about a failed call. It matches
// its Kind sentinel with errors.Is.
type GatewayError struct {
	Op          string
	Kind        error
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	switch {
	case e.Code != "" && e.Description != "":
		msg += ": " + e.Code + ": " + e.Description
	case e.Description != "":
		msg += ": " + e.Description
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Kind
}
