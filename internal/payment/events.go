package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"paysync/internal/repository"
)

// EventType is the gateway's webhook event name.
type EventType string

const (
	EventPaymentAuthorized EventType = "payment.authorized"
	EventPaymentCaptured   EventType = "payment.captured"
	EventPaymentFailed     EventType = "payment.failed"
	EventRefundProcessed   EventType = "refund.processed"
)

// InboundEvent is a parsed webhook body, flattened to the fields the
// handlers read.
type InboundEvent struct {
	Type             EventType
	GatewayOrderID   string
	GatewayPaymentID string
	RefundID         string
	Amount           int64
	// AmountRefunded is the payment's cumulative refunded amount, when the
	// event carries the payment entity.
	AmountRefunded   int64
	Currency         string
	PaymentStatus    string
	ErrorCode        string
	ErrorDescription string
	CreatedAt        time.Time
	// Raw is the signed body the event was parsed from.
	Raw []byte
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

type paymentEntity struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"order_id"`
	Amount           int64   `json:"amount"`
	AmountRefunded   int64   `json:"amount_refunded"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	ErrorCode        *string `json:"error_code"`
	ErrorDescription *string `json:"error_description"`
}

type refundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// ParseWebhookEvent decodes a webhook body. Event types the service does
// not handle still parse; Event reports them as unsupported. Required
// identifiers are checked separately by Validate.
func ParseWebhookEvent(raw []byte) (*InboundEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhookPayload, err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedWebhookPayload)
	}

	e := &InboundEvent{Type: EventType(env.Event), Raw: raw}
	if env.CreatedAt > 0 {
		e.CreatedAt = time.Unix(env.CreatedAt, 0).UTC()
	}
	if p := env.Payload.Payment; p != nil {
		e.GatewayPaymentID = p.Entity.ID
		e.GatewayOrderID = p.Entity.OrderID
		e.Amount = p.Entity.Amount
		e.AmountRefunded = p.Entity.AmountRefunded
		e.Currency = p.Entity.Currency
		e.PaymentStatus = p.Entity.Status
		if p.Entity.ErrorCode != nil {
			e.ErrorCode = *p.Entity.ErrorCode
		}
		if p.Entity.ErrorDescription != nil {
			e.ErrorDescription = *p.Entity.ErrorDescription
		}
	}
	if r := env.Payload.Refund; r != nil {
		e.RefundID = r.Entity.ID
		if e.GatewayPaymentID == "" {
			e.GatewayPaymentID = r.Entity.PaymentID
		}
		// The refund's own amount, not the payment's.
		e.Amount = r.Entity.Amount
		if e.Currency == "" {
			e.Currency = r.Entity.Currency
		}
	}

	return e, nil
}

// Validate checks that a supported event carries the identifiers its
// handler looks up by.
func (e *InboundEvent) Validate() error {
	switch e.Type {
	case EventPaymentAuthorized, EventPaymentCaptured, EventPaymentFailed:
		if e.GatewayPaymentID == "" || e.GatewayOrderID == "" {
			return fmt.Errorf("%w: %s without payment or order id", ErrMalformedWebhookPayload, e.Type)
		}
	case EventRefundProcessed:
		if e.GatewayPaymentID == "" || e.RefundID == "" {
			return fmt.Errorf("%w: %s without payment or refund id", ErrMalformedWebhookPayload, e.Type)
		}
	}
	return nil
}

// IdempotencyKey identifies one logical event: the event type plus the
// entity it concerns.
func (e *InboundEvent) IdempotencyKey() string {
	if e.Type == EventRefundProcessed {
		return string(e.Type) + ":" + e.RefundID
	}
	return string(e.Type) + ":" + e.GatewayPaymentID
}

// Event returns the typed variant for dispatch.
func (e *InboundEvent) Event() Event {
	switch e.Type {
	case EventPaymentAuthorized:
		return PaymentAuthorized{e}
	case EventPaymentCaptured:
		return PaymentCaptured{e}
	case EventPaymentFailed:
		return PaymentFailed{e}
	case EventRefundProcessed:
		return RefundProcessed{e}
	default:
		return Unsupported{e}
	}
}

// Event is one of the variants below. Adding a variant means adding a
// method to EventHandler, so every handler set has to cover it.
type Event interface {
	Supported() bool
	Dispatch(ctx context.Context, tx *repository.Store, h EventHandler) (Effect, error)
}

// EventHandler applies each supported variant inside the webhook's
// transaction.
type EventHandler interface {
	PaymentAuthorized(ctx context.Context, tx *repository.Store, e PaymentAuthorized) (Effect, error)
	PaymentCaptured(ctx context.Context, tx *repository.Store, e PaymentCaptured) (Effect, error)
	PaymentFailed(ctx context.Context, tx *repository.Store, e PaymentFailed) (Effect, error)
	RefundProcessed(ctx context.Context, tx *repository.Store, e RefundProcessed) (Effect, error)
}

// Effect is what applying an event did, plus the notifications to send
// once it has committed.
type Effect struct {
	Outcome       Outcome
	Notifications []Notification
}

type PaymentAuthorized struct{ *InboundEvent }

func (e PaymentAuthorized) Supported() bool { return true }
func (e PaymentAuthorized) Dispatch(ctx context.Context, tx *repository.Store, h EventHandler) (Effect, error) {
	return h.PaymentAuthorized(ctx, tx, e)
}

type PaymentCaptured struct{ *InboundEvent }

func (e PaymentCaptured) Supported() bool { return true }
func (e PaymentCaptured) Dispatch(ctx context.Context, tx *repository.Store, h EventHandler) (Effect, error) {
	return h.PaymentCaptured(ctx, tx, e)
}

type PaymentFailed struct{ *InboundEvent }

func (e PaymentFailed) Supported() bool { return true }
func (e PaymentFailed) Dispatch(ctx context.Context, tx *repository.Store, h EventHandler) (Effect, error) {
	return h.PaymentFailed(ctx, tx, e)
}

type RefundProcessed struct{ *InboundEvent }

func (e RefundProcessed) Supported() bool { return true }
func (e RefundProcessed) Dispatch(ctx context.Context, tx *repository.Store, h EventHandler) (Effect, error) {
	return h.RefundProcessed(ctx, tx, e)
}

// Unsupported is any event type without a handler. It is acknowledged and
// ignored.
type Unsupported struct{ *InboundEvent }

func (e Unsupported) Supported() bool { return false }
func (e Unsupported) Dispatch(context.Context, *repository.Store, EventHandler) (Effect, error) {
	return Effect{Outcome: OutcomeIgnored}, nil
}
