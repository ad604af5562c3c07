// Package notify delivers payment notifications to operators and
// downstream consumers.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"paysync/internal/payment"
)

// Multi fans a notification out to every notifier and joins their errors.
type Multi []payment.Notifier

func (m Multi) Notify(ctx context.Context, n payment.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to the service log. It is always wired, so a
// notification is never lost silently when no external sink is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n payment.Notification) error {
	fields := []zap.Field{
		zap.String("type", string(n.Type)),
		zap.String("order", n.OrderShortID),
		zap.Int64("amount", n.Amount),
		zap.String("currency", n.Currency),
	}
	if n.GatewayPaymentID != "" {
		fields = append(fields, zap.String("gateway_payment_id", n.GatewayPaymentID))
	}
	if n.RefundID != "" {
		fields = append(fields, zap.String("refund_id", n.RefundID))
	}
	if n.Reason != "" {
		fields = append(fields, zap.String("reason", n.Reason))
	}

	if n.Type == payment.NotifyNeedsReconciliation {
		l.logger.Warn("notification", fields...)
	} else {
		l.logger.Info("notification", fields...)
	}
	return nil
}
