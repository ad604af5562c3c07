package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/repository"
)

// Finalizer performs the side effects of a completed order: inventory,
// attendee activation and the like. It runs inside the caller's transaction
// and must be idempotent per order.
type Finalizer interface {
	CompleteOrder(ctx context.Context, tx *repository.Store, order *models.Order) error
}

// AffiliateRecorder credits an affiliate for a completed order. It runs
// inside the caller's transaction and must record at most one sale per order.
type AffiliateRecorder interface {
	RecordSale(ctx context.Context, tx *repository.Store, order *models.Order, amountMinor int64) error
}

// Notifier delivers notifications after the state change they describe has
// committed. Failures are logged, never propagated into payment state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotificationType string

const (
	NotifyOrderCompleted      NotificationType = "order.completed"
	NotifyPaymentFailed       NotificationType = "payment.failed"
	NotifyRefundIssued        NotificationType = "refund.issued"
	NotifyNeedsReconciliation NotificationType = "payment.needs_reconciliation"
)

type Notification struct {
	Type             NotificationType `json:"type"`
	OrderID          uint             `json:"order_id"`
	OrderShortID     string           `json:"order_short_id"`
	Email            string           `json:"email,omitempty"`
	GatewayOrderID   string           `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string           `json:"gateway_payment_id,omitempty"`
	RefundID         string           `json:"refund_id,omitempty"`
	Amount           int64            `json:"amount"`
	Currency         string           `json:"currency"`
	Reason           string           `json:"reason,omitempty"`
	// Kind classifies Reason for reconciliation notifications.
	Kind       string    `json:"kind,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newNotification(t NotificationType, order *models.Order, binding *models.PaymentBinding, now time.Time) Notification {
	n := Notification{
		Type:         t,
		OrderID:      order.ID,
		OrderShortID: order.ShortID,
		Email:        order.Email,
		Currency:     order.Currency,
		OccurredAt:   now,
	}
	if binding != nil {
		n.GatewayOrderID = binding.GatewayOrderID
		n.GatewayPaymentID = binding.PaymentID()
		n.Amount = binding.Amount
		n.Currency = binding.Currency
	}
	return n
}

// deliver sends every notification, logging failures.
func deliver(ctx context.Context, notifier Notifier, logger *zap.Logger, notes []Notification) {
	if notifier == nil {
		return
	}
	for _, n := range notes {
		if err := notifier.Notify(ctx, n); err != nil {
			logger.Warn("notification failed",
				zap.String("type", string(n.Type)),
				zap.String("order", n.OrderShortID),
				zap.Error(err))
		}
	}
}

type noopFinalizer struct{}

func (noopFinalizer) CompleteOrder(context.Context, *repository.Store, *models.Order) error {
	return nil
}

type noopAffiliates struct{}

func (noopAffiliates) RecordSale(context.Context, *repository.Store, *models.Order, int64) error {
	return nil
}

func systemNow() time.Time {
	return time.Now().UTC()
}
