// Package paymenttest provides an in-memory payment gateway for tests.
package paymenttest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"paysync/internal/payment"
)

const (
	KeyID         = "rzp_test_fake"
	KeySecret     = "fake_key_secret"
	WebhookSecret = "fake_webhook_secret"
)

// Gateway is a payment.Gateway backed by maps. Set the *Err fields to make
// the matching call fail.
type Gateway struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*payment.GatewayOrder
	payments map[string]*payment.GatewayPayment
	refunds  []payment.CreateRefundRequest

	CreateOrderErr error
	FetchErr       error
	RefundErr      error

	createOrderCalls int
	fetchCalls       int
}

var _ payment.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		orders:   make(map[string]*payment.GatewayOrder),
		payments: make(map[string]*payment.GatewayPayment),
	}
}

func (g *Gateway) Name() string  { return "fake" }
func (g *Gateway) KeyID() string { return KeyID }

func (g *Gateway) CreateOrder(_ context.Context, req payment.CreateOrderRequest) (*payment.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createOrderCalls++
	if g.CreateOrderErr != nil {
		return nil, g.CreateOrderErr
	}
	g.seq++
	order := &payment.GatewayOrder{
		ID:       fmt.Sprintf("order_fake%04d", g.seq),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.orders[order.ID] = order
	cp := *order
	return &cp, nil
}

func (g *Gateway) FetchPayment(_ context.Context, paymentID string) (*payment.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls++
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &payment.GatewayError{
			Kind:        payment.ErrGatewayRequestInvalid,
			StatusCode:  http.StatusBadRequest,
			Code:        "BAD_REQUEST_ERROR",
			Description: "The id provided does not exist",
		}
	}
	cp := *p
	return &cp, nil
}

func (g *Gateway) CreateRefund(_ context.Context, req payment.CreateRefundRequest) (*payment.GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return nil, g.RefundErr
	}
	g.refunds = append(g.refunds, req)
	if p, ok := g.payments[req.PaymentID]; ok {
		p.AmountRefunded += req.Amount
	}
	return &payment.GatewayRefund{
		ID:        fmt.Sprintf("rfnd_fake%04d", len(g.refunds)),
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Currency:  "INR",
		Status:    "processed",
	}, nil
}

func (g *Gateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return payment.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, KeySecret)
}

func (g *Gateway) VerifyWebhookSignature(rawPayload []byte, signature string) bool {
	return payment.VerifyWebhookSignature(rawPayload, signature, WebhookSecret)
}

// AddPayment registers a payment FetchPayment will return.
func (g *Gateway) AddPayment(p payment.GatewayPayment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := p
	g.payments[p.ID] = &cp
}

// Refunds returns the refund requests received so far.
func (g *Gateway) Refunds() []payment.CreateRefundRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.CreateRefundRequest(nil), g.refunds...)
}

func (g *Gateway) CreateOrderCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createOrderCalls
}

func (g *Gateway) FetchCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetchCalls
}

// SignPayment returns the checkout signature for the pair.
func SignPayment(gatewayOrderID, gatewayPaymentID string) string {
	return payment.Sign([]byte(gatewayOrderID+"|"+gatewayPaymentID), KeySecret)
}

// SignWebhook returns the webhook signature for body.
func SignWebhook(body []byte) string {
	return payment.Sign(body, WebhookSecret)
}

// Notifier records notifications. Err makes every call fail after recording.
type Notifier struct {
	mu   sync.Mutex
	sent []payment.Notification
	Err  error
}

func (n *Notifier) Notify(_ context.Context, note payment.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return n.Err
}

func (n *Notifier) Sent() []payment.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]payment.Notification(nil), n.sent...)
}

// OfType returns the recorded notifications of type t.
func (n *Notifier) OfType(t payment.NotificationType) []payment.Notification {
	var out []payment.Notification
	for _, note := range n.Sent() {
		if note.Type == t {
			out = append(out, note)
		}
	}
	return out
}
