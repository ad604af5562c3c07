package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paysync/internal/models"
	"paysync/internal/repository"
)

// EventHandlers applies webhook events to orders and bindings.
type EventHandlers struct {
	finalizer  Finalizer
	affiliates AffiliateRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewEventHandlers(finalizer Finalizer, affiliates AffiliateRecorder, logger *zap.Logger) *EventHandlers {
	if finalizer == nil {
		finalizer = noopFinalizer{}
	}
	if affiliates == nil {
		affiliates = noopAffiliates{}
	}
	return &EventHandlers{finalizer: finalizer, affiliates: affiliates, logger: logger, now: systemNow}
}

var _ EventHandler = (*EventHandlers)(nil)

// lockPair loads and locks the binding for the event's gateway order and
// then its order. A nil binding means the event is not ours.
func (h *EventHandlers) lockPair(tx *repository.Store, e *InboundEvent) (*models.PaymentBinding, *models.Order, error) {
	binding, err := tx.Bindings.LockByGatewayOrderID(e.GatewayOrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.Warn("webhook for unknown gateway order",
			zap.String("event", string(e.Type)),
			zap.String("gateway_order_id", e.GatewayOrderID))
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	order, err := tx.Orders.LockByID(binding.OrderID)
	if err != nil {
		return nil, nil, fmt.Errorf("load order %d: %w", binding.OrderID, err)
	}
	return binding, order, nil
}

func (h *EventHandlers) PaymentAuthorized(_ context.Context, tx *repository.Store, e PaymentAuthorized) (Effect, error) {
	binding, order, err := h.lockPair(tx, e.InboundEvent)
	if err != nil || binding == nil {
		return Effect{Outcome: OutcomeSkipped}, err
	}

	if order.Status != models.OrderStatusReserved || order.PaymentStatus == models.PaymentStatusReceived {
		return Effect{Outcome: OutcomeNoop}, nil
	}
	if bound := binding.PaymentID(); bound != "" && bound != e.GatewayPaymentID {
		h.logger.Warn("authorization for a different payment than the one bound",
			zap.String("order", order.ShortID),
			zap.String("bound", bound),
			zap.String("gateway_payment_id", e.GatewayPaymentID))
		return Effect{Outcome: OutcomeNoop}, nil
	}

	if err := bindPayment(tx, binding, e.GatewayPaymentID, map[string]interface{}{
		"amount_received": e.Amount,
		"last_error":      nil,
	}); err != nil {
		return Effect{}, err
	}
	if _, err := tx.Orders.CompareAndUpdate(order.ID, repository.OrderGuard{
		Statuses:        []models.OrderStatus{models.OrderStatusReserved},
		PaymentStatuses: []models.PaymentStatus{models.PaymentStatusAwaiting, models.PaymentStatusFailed},
	}, map[string]interface{}{"payment_status": models.PaymentStatusAwaiting}); err != nil {
		return Effect{}, err
	}
	return Effect{Outcome: OutcomeApplied}, nil
}

func (h *EventHandlers) PaymentCaptured(ctx context.Context, tx *repository.Store, e PaymentCaptured) (Effect, error) {
	binding, order, err := h.lockPair(tx, e.InboundEvent)
	if err != nil || binding == nil {
		return Effect{Outcome: OutcomeSkipped}, err
	}
	now := h.now()

	bound := binding.PaymentID()
	if bound != "" && bound != e.GatewayPaymentID {
		return h.flag(tx, order, binding, e.InboundEvent,
			fmt.Errorf("%w: payment %s captured but order is bound to payment %s", ErrPaymentIDConflict, e.GatewayPaymentID, bound))
	}
	if order.Status == models.OrderStatusCompleted {
		return Effect{Outcome: OutcomeNoop}, nil
	}
	if order.IsExpired(now) || order.Status == models.OrderStatusCancelled {
		return h.flag(tx, order, binding, e.InboundEvent,
			fmt.Errorf("%w: order %s is %s", ErrPaymentAcceptedForExpiredOrder, order.ShortID, order.Status))
	}

	expected, err := ToMinorUnits(order.TotalGross, order.Currency)
	if err != nil {
		return Effect{}, err
	}
	if err := CheckAmount(expected, e.Amount); err != nil {
		return h.flag(tx, order, binding, e.InboundEvent, err)
	}
	if err := CheckCurrency(order.Currency, e.Currency); err != nil {
		return h.flag(tx, order, binding, e.InboundEvent, err)
	}

	if err := bindPayment(tx, binding, e.GatewayPaymentID, map[string]interface{}{
		"amount_received": e.Amount,
		"last_error":      nil,
	}); err != nil {
		return Effect{}, err
	}
	ok, err := tx.Orders.CompareAndUpdate(order.ID, repository.OrderGuard{
		Statuses: []models.OrderStatus{models.OrderStatusReserved},
		PaymentStatuses: []models.PaymentStatus{
			models.PaymentStatusAwaiting,
			models.PaymentStatusFailed,
			models.PaymentStatusReceived,
		},
	}, map[string]interface{}{
		"status":         models.OrderStatusCompleted,
		"payment_status": models.PaymentStatusReceived,
	})
	if err != nil {
		return Effect{}, err
	}
	if !ok {
		return Effect{Outcome: OutcomeNoop}, nil
	}
	order.Status = models.OrderStatusCompleted
	order.PaymentStatus = models.PaymentStatusReceived

	if err := h.finalizer.CompleteOrder(ctx, tx, order); err != nil {
		return Effect{}, fmt.Errorf("finalize order %s: %w", order.ShortID, err)
	}
	if order.AffiliateCode != "" {
		if err := h.affiliates.RecordSale(ctx, tx, order, e.Amount); err != nil {
			return Effect{}, fmt.Errorf("record affiliate sale for %s: %w", order.ShortID, err)
		}
	}

	binding.GatewayPaymentID = &e.GatewayPaymentID
	return Effect{
		Outcome:       OutcomeApplied,
		Notifications: []Notification{newNotification(NotifyOrderCompleted, order, binding, now)},
	}, nil
}

func (h *EventHandlers) PaymentFailed(_ context.Context, tx *repository.Store, e PaymentFailed) (Effect, error) {
	binding, order, err := h.lockPair(tx, e.InboundEvent)
	if err != nil || binding == nil {
		return Effect{Outcome: OutcomeSkipped}, err
	}

	if err := tx.Bindings.Update(binding.ID, map[string]interface{}{"last_error": describeFailure(e.InboundEvent)}); err != nil {
		return Effect{}, err
	}
	if order.Status != models.OrderStatusReserved || order.PaymentStatus == models.PaymentStatusReceived {
		// A failed retry after a successful payment changes nothing.
		return Effect{Outcome: OutcomeNoop}, nil
	}

	ok, err := tx.Orders.CompareAndUpdate(order.ID, repository.OrderGuard{
		Statuses:        []models.OrderStatus{models.OrderStatusReserved},
		PaymentStatuses: []models.PaymentStatus{models.PaymentStatusAwaiting, models.PaymentStatusFailed},
	}, map[string]interface{}{"payment_status": models.PaymentStatusFailed})
	if err != nil {
		return Effect{}, err
	}
	if !ok {
		return Effect{Outcome: OutcomeNoop}, nil
	}

	n := newNotification(NotifyPaymentFailed, order, binding, h.now())
	n.GatewayPaymentID = e.GatewayPaymentID
	n.Reason = describeFailure(e.InboundEvent)
	return Effect{Outcome: OutcomeApplied, Notifications: []Notification{n}}, nil
}

func (h *EventHandlers) RefundProcessed(_ context.Context, tx *repository.Store, e RefundProcessed) (Effect, error) {
	binding, err := tx.Bindings.LockByGatewayPaymentID(e.GatewayPaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.Warn("refund for unknown payment",
			zap.String("refund_id", e.RefundID),
			zap.String("gateway_payment_id", e.GatewayPaymentID))
		return Effect{Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		return Effect{}, err
	}
	order, err := tx.Orders.LockByID(binding.OrderID)
	if err != nil {
		return Effect{}, fmt.Errorf("load order %d: %w", binding.OrderID, err)
	}

	inserted, err := tx.Refunds.Record(&models.Refund{
		BindingID: binding.ID,
		RefundID:  e.RefundID,
		Amount:    e.Amount,
		Currency:  binding.Currency,
		Source:    models.RefundSourceWebhook,
	})
	if err != nil {
		return Effect{}, err
	}

	// The payment entity is a snapshot from when the event was created, so a
	// late delivery may report less than is already recorded.
	refunded := binding.AmountRefunded
	if inserted {
		refunded += e.Amount
	}
	if e.AmountRefunded > refunded {
		refunded = e.AmountRefunded
	}
	received := binding.Received()
	if received > 0 && refunded > received {
		refunded = received
	}
	if refunded < binding.AmountRefunded {
		refunded = binding.AmountRefunded
	}

	updates := map[string]interface{}{"amount_refunded": refunded}
	if inserted {
		updates["refund_id"] = e.RefundID
	}
	if err := tx.Bindings.Update(binding.ID, updates); err != nil {
		return Effect{}, err
	}

	if order.Status != models.OrderStatusCompleted && order.Status != models.OrderStatusCancelled {
		h.logger.Info("refund recorded on binding of an unfinished order",
			zap.String("order", order.ShortID),
			zap.String("status", string(order.Status)),
			zap.String("refund_id", e.RefundID))
		return Effect{Outcome: OutcomeApplied}, nil
	}

	if order.RefundStatus != nil && *order.RefundStatus == models.RefundStatusFull {
		return Effect{Outcome: OutcomeNoop}, nil
	}
	status := refundStatusFor(refunded, received)
	if err := tx.Orders.UpdateFields(order.ID, map[string]interface{}{"refund_status": status}); err != nil {
		return Effect{}, err
	}
	return Effect{Outcome: OutcomeApplied}, nil
}

// flag parks a captured payment for manual reconciliation. The delivery is
// still acknowledged: redelivering it cannot fix the mismatch.
func (h *EventHandlers) flag(tx *repository.Store, order *models.Order, binding *models.PaymentBinding, e *InboundEvent, cause error) (Effect, error) {
	reason := cause.Error()
	kind := KindOf(cause)
	updates := map[string]interface{}{}
	if binding.GatewayPaymentID == nil {
		updates["gateway_payment_id"] = e.GatewayPaymentID
		updates["amount_received"] = e.Amount
	}
	if err := tx.Bindings.Flag(binding.ID, reason, updates); err != nil {
		return Effect{}, err
	}

	h.logger.Error("captured payment needs manual reconciliation",
		zap.String("order", order.ShortID),
		zap.String("gateway_payment_id", e.GatewayPaymentID),
		zap.Int64("amount", e.Amount),
		zap.Stringer("kind", kind),
		zap.Error(cause))

	n := newNotification(NotifyNeedsReconciliation, order, binding, h.now())
	n.GatewayPaymentID = e.GatewayPaymentID
	n.Amount = e.Amount
	n.Reason = reason
	n.Kind = kind.String()
	return Effect{Outcome: OutcomeNeedsReconciliation, Notifications: []Notification{n}}, nil
}

func describeFailure(e *InboundEvent) string {
	switch {
	case e.ErrorCode != "" && e.ErrorDescription != "":
		return e.ErrorCode + ": " + e.ErrorDescription
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.ErrorCode != "":
		return e.ErrorCode
	default:
		return "payment failed"
	}
}

func refundStatusFor(refunded, received int64) models.RefundStatus {
	if received > 0 && refunded >= received {
		return models.RefundStatusFull
	}
	return models.RefundStatusPartial
}
