package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"paysync/internal/pkg/httpclient"
)

const DefaultRazorpayBaseURL = "https://api.razorpay.com"

const refundIdempotencyHeader = "X-Refund-Idempotency"

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	// Timeout bounds a whole gateway call, retries included.
	Timeout time.Duration
	// Retries is the retry count for transport errors and 5xx responses on
	// GETs and keyed refunds; 0 keeps the client default and a negative
	// value disables retries.
	Retries   int
	RetryWait time.Duration
}

// RazorpayGateway implements Gateway over Razorpay's REST API.
type RazorpayGateway struct {
	cfg    RazorpayConfig
	client *httpclient.Client
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRazorpayBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := httpclient.New().
		WithTimeout(cfg.Timeout).
		WithBaseURL(cfg.BaseURL).
		WithBasicAuth(cfg.KeyID, cfg.KeySecret).
		WithIdempotencyHeader(refundIdempotencyHeader)
	if cfg.Retries != 0 || cfg.RetryWait > 0 {
		retries, wait := cfg.Retries, cfg.RetryWait
		if retries == 0 {
			retries = 2
		} else if retries < 0 {
			retries = 0
		}
		if wait <= 0 {
			wait = time.Second
		}
		client.WithRetry(retries, wait, 5*wait)
	}
	return &RazorpayGateway{cfg: cfg, client: client}
}

func (g *RazorpayGateway) Name() string {
	return "razorpay"
}

func (g *RazorpayGateway) KeyID() string {
	return g.cfg.KeyID
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error) {
	req.Currency = NormalizeCurrency(req.Currency)
	const op = "create order"
	resp, err := g.client.Post(ctx, "/v1/orders", req, nil)
	if err != nil {
		return nil, transportError(op, err)
	}

	var order GatewayOrder
	if err := decode(op, resp, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, &GatewayError{Op: op, Kind: ErrGatewayUnavailable, StatusCode: resp.StatusCode, Description: "order id missing from response"}
	}
	return &order, nil
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	const op = "fetch payment"
	if paymentID == "" {
		return nil, &GatewayError{Op: op, Kind: ErrGatewayRequestInvalid, Description: "payment id is empty"}
	}
	resp, err := g.client.Get(ctx, "/v1/payments/"+url.PathEscape(paymentID))
	if err != nil {
		return nil, transportError(op, err)
	}

	var payment GatewayPayment
	if err := decode(op, resp, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (g *RazorpayGateway) CreateRefund(ctx context.Context, req CreateRefundRequest) (*GatewayRefund, error) {
	const op = "create refund"
	if req.PaymentID == "" {
		return nil, &GatewayError{Op: op, Kind: ErrGatewayRequestInvalid, Description: "payment id is empty"}
	}
	body := map[string]interface{}{"amount": req.Amount}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{refundIdempotencyHeader: req.IdempotencyKey}
	}

	resp, err := g.client.Post(ctx, "/v1/payments/"+url.PathEscape(req.PaymentID)+"/refund", body, headers)
	if err != nil {
		return nil, transportError(op, err)
	}

	var refund GatewayRefund
	if err := decode(op, resp, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (g *RazorpayGateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, g.cfg.KeySecret)
}

func (g *RazorpayGateway) VerifyWebhookSignature(rawPayload []byte, signature string) bool {
	return VerifyWebhookSignature(rawPayload, signature, g.cfg.WebhookSecret)
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func transportError(op string, err error) error {
	return &GatewayError{Op: op, Kind: ErrGatewayUnavailable, Description: err.Error()}
}

// decode maps a gateway response onto out, or onto a GatewayError for any
// non-2xx status.
func decode(op string, resp *httpclient.Response, out interface{}) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return &GatewayError{Op: op, Kind: ErrGatewayUnavailable, StatusCode: resp.StatusCode, Description: fmt.Sprintf("decode response: %v", err)}
		}
		return nil
	}

	gwErr := &GatewayError{Op: op, StatusCode: resp.StatusCode}
	var body razorpayErrorBody
	if json.Unmarshal(resp.Body, &body) == nil {
		gwErr.Code = body.Error.Code
		gwErr.Description = body.Error.Description
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		gwErr.Kind = ErrGatewayAuthInvalid
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		gwErr.Kind = ErrGatewayUnavailable
	default:
		gwErr.Kind = ErrGatewayRequestInvalid
	}
	return gwErr
}
