package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paysync/internal/models"
	"paysync/internal/repository"
)

type RefundOptions struct {
	CancelOrder bool
	NotifyBuyer bool
	Reason      string
}

type RefundResult struct {
	RefundID       string
	RefundStatus   models.RefundStatus
	Amount         int64
	AmountRefunded int64
	OrderStatus    models.OrderStatus
}

// RefundOrchestrator issues operator-initiated refunds.
type RefundOrchestrator struct {
	store    *repository.Store
	gateway  Gateway
	notifier Notifier
	logger   *zap.Logger
	newKey   func() string
	now      func() time.Time
}

func NewRefundOrchestrator(store *repository.Store, gateway Gateway, notifier Notifier, logger *zap.Logger) *RefundOrchestrator {
	return &RefundOrchestrator{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		newKey:   uuid.NewString,
		now:      systemNow,
	}
}

// IsRefundEligible reports why order cannot be refunded, or nil.
func IsRefundEligible(order *models.Order, binding *models.PaymentBinding) error {
	if binding == nil || binding.PaymentID() == "" || binding.Received() <= 0 {
		return ErrNoPaymentToRefund
	}
	if order.RefundStatus != nil && *order.RefundStatus == models.RefundStatusFull {
		return ErrAlreadyFullyRefunded
	}
	switch {
	case order.Status == models.OrderStatusCompleted:
		return nil
	case order.Status == models.OrderStatusCancelled && order.RefundStatus != nil:
		// Cancelled by an earlier partial refund.
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrOrderNotRefundable, order.Status)
	}
}

// CheckRefundAmount validates a refund amount against what was received and
// already refunded, all in minor units.
func CheckRefundAmount(amount, received, refunded int64, currency string) error {
	switch {
	case amount == 0:
		return ErrRefundAmountZero
	case amount < 0:
		return ErrRefundAmountNegative
	case amount < minRefund(currency):
		return fmt.Errorf("%w: %d < %d", ErrRefundBelowMinimum, amount, minRefund(currency))
	case amount > received:
		return fmt.Errorf("%w: %d > %d", ErrRefundExceedsPayment, amount, received)
	case amount > received-refunded:
		return fmt.Errorf("%w: %d > %d", ErrRefundExceedsRemaining, amount, received-refunded)
	}
	return nil
}

// Refund refunds amount minor units of the order's payment. Nothing is
// written unless the gateway accepts the refund.
func (r *RefundOrchestrator) Refund(ctx context.Context, orderID uint, amount int64, opts RefundOptions) (*RefundResult, error) {
	var (
		result *RefundResult
		note   *Notification
	)

	err := r.store.Transaction(ctx, func(tx *repository.Store) error {
		order, err := tx.Orders.LockByID(orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		binding, err := tx.Bindings.LockByOrderID(order.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPaymentToRefund
		}
		if err != nil {
			return err
		}

		if err := IsRefundEligible(order, binding); err != nil {
			return err
		}
		received := binding.Received()
		if err := CheckRefundAmount(amount, received, binding.AmountRefunded, binding.Currency); err != nil {
			return err
		}

		payment, err := r.gateway.FetchPayment(ctx, binding.PaymentID())
		if err != nil {
			return fmt.Errorf("fetch payment: %w", err)
		}
		if !payment.Settled() {
			return fmt.Errorf("%w: status %q", ErrPaymentNotRefundable, payment.Status)
		}

		notes := map[string]string{"order_short_id": order.ShortID}
		if opts.Reason != "" {
			notes["reason"] = opts.Reason
		}
		refund, err := r.gateway.CreateRefund(ctx, CreateRefundRequest{
			PaymentID:      binding.PaymentID(),
			Amount:         amount,
			IdempotencyKey: r.newKey(),
			Notes:          notes,
		})
		if err != nil {
			return fmt.Errorf("create refund: %w", err)
		}

		if _, err := tx.Refunds.Record(&models.Refund{
			BindingID: binding.ID,
			RefundID:  refund.ID,
			Amount:    amount,
			Currency:  binding.Currency,
			Source:    models.RefundSourceOperator,
		}); err != nil {
			return err
		}

		refunded := binding.AmountRefunded + amount
		status := refundStatusFor(refunded, received)
		if err := tx.Bindings.Update(binding.ID, map[string]interface{}{
			"refund_id":       refund.ID,
			"amount_refunded": refunded,
		}); err != nil {
			return err
		}

		updates := map[string]interface{}{"refund_status": status}
		if opts.CancelOrder {
			updates["status"] = models.OrderStatusCancelled
			order.Status = models.OrderStatusCancelled
		}
		if err := tx.Orders.UpdateFields(order.ID, updates); err != nil {
			return err
		}

		result = &RefundResult{
			RefundID:       refund.ID,
			RefundStatus:   status,
			Amount:         amount,
			AmountRefunded: refunded,
			OrderStatus:    order.Status,
		}
		if opts.NotifyBuyer {
			n := newNotification(NotifyRefundIssued, order, binding, r.now())
			n.RefundID = refund.ID
			n.Amount = amount
			n.Reason = opts.Reason
			note = &n
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("refund rejected",
			zap.Uint("order_id", orderID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	r.logger.Info("refund issued",
		zap.Uint("order_id", orderID),
		zap.String("refund_id", result.RefundID),
		zap.Int64("amount", amount),
		zap.String("refund_status", string(result.RefundStatus)))
	if note != nil {
		deliver(ctx, r.notifier, r.logger, []Notification{*note})
	}
	return result, nil
}
