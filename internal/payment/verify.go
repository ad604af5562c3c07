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

// VerificationResult describes the order after a synchronous verification.
type VerificationResult struct {
	Verified bool
	// AlreadyProcessed is set when the payment had been recorded before
	// this call, by an earlier verification or a webhook.
	AlreadyProcessed bool
	Captured         bool
	OrderID          uint
	GatewayPaymentID string
	PaymentStatus    models.PaymentStatus
	OrderStatus      models.OrderStatus
}

// Verifier confirms a payment reported by the browser after checkout.
// It competes with the webhook pipeline for the same order; whichever
// commits first wins and the other observes the result.
type Verifier struct {
	store      *repository.Store
	gateway    Gateway
	finalizer  Finalizer
	affiliates AffiliateRecorder
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewVerifier(store *repository.Store, gateway Gateway, finalizer Finalizer, affiliates AffiliateRecorder, notifier Notifier, logger *zap.Logger) *Verifier {
	if finalizer == nil {
		finalizer = noopFinalizer{}
	}
	if affiliates == nil {
		affiliates = noopAffiliates{}
	}
	return &Verifier{
		store:      store,
		gateway:    gateway,
		finalizer:  finalizer,
		affiliates: affiliates,
		notifier:   notifier,
		logger:     logger,
		now:        systemNow,
	}
}

// Verify checks the checkout signature, confirms the payment with the
// gateway and moves the order to PAYMENT_RECEIVED, completing it when the
// payment is already captured. A bad signature is recorded as a failed
// attempt before the error is returned.
func (v *Verifier) Verify(ctx context.Context, shortID, gatewayPaymentID, gatewayOrderID, signature string) (*VerificationResult, error) {
	var (
		result    *VerificationResult
		rejection error
		notes     []Notification
	)

	err := v.store.Transaction(ctx, func(tx *repository.Store) error {
		order, err := tx.Orders.LockByShortID(shortID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		binding, err := tx.Bindings.LockByOrderID(order.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if order.PaymentStatus == models.PaymentStatusReceived {
			if bound := binding.PaymentID(); bound != "" && bound != gatewayPaymentID {
				return ErrPaymentIDConflict
			}
			result = resultFor(order, binding, true)
			return nil
		}
		if order.Status != models.OrderStatusReserved {
			return fmt.Errorf("%w: %s", ErrInvalidOrderState, order.Status)
		}
		if order.ReservationLapsed(v.now()) {
			return ErrOrderExpired
		}
		if gatewayOrderID != binding.GatewayOrderID {
			return ErrOrderIDMismatch
		}

		if !v.gateway.VerifyPaymentSignature(binding.GatewayOrderID, gatewayPaymentID, signature) {
			rejection = ErrSignatureVerificationFailed
			return v.recordFailure(tx, order, binding, rejection.Error())
		}

		payment, err := v.gateway.FetchPayment(ctx, gatewayPaymentID)
		if err != nil {
			return fmt.Errorf("fetch payment: %w", err)
		}
		if err := checkPayment(payment, order, binding); err != nil {
			return err
		}

		if err := bindPayment(tx, binding, gatewayPaymentID, map[string]interface{}{
			"signature":       signature,
			"amount_received": payment.Amount,
			"last_error":      nil,
		}); err != nil {
			return err
		}

		updates := map[string]interface{}{"payment_status": models.PaymentStatusReceived}
		if payment.Captured() {
			updates["status"] = models.OrderStatusCompleted
		}
		ok, err := tx.Orders.CompareAndUpdate(order.ID, repository.OrderGuard{
			Statuses:        []models.OrderStatus{models.OrderStatusReserved},
			PaymentStatuses: []models.PaymentStatus{models.PaymentStatusAwaiting, models.PaymentStatusFailed},
		}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderStateConflict
		}

		order.PaymentStatus = models.PaymentStatusReceived
		if payment.Captured() {
			order.Status = models.OrderStatusCompleted
			v.complete(ctx, tx, order, payment.Amount)
			notes = append(notes, newNotification(NotifyOrderCompleted, order, binding, v.now()))
		}
		binding.GatewayPaymentID = &gatewayPaymentID
		result = resultFor(order, binding, false)
		result.Captured = payment.Captured()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		v.logger.Warn("payment signature rejected",
			zap.String("order", shortID),
			zap.String("gateway_payment_id", gatewayPaymentID))
		return nil, rejection
	}

	v.logger.Info("payment verified",
		zap.String("order", shortID),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.Bool("captured", result.Captured),
		zap.Bool("already_processed", result.AlreadyProcessed))
	deliver(ctx, v.notifier, v.logger, notes)
	return result, nil
}

// complete runs finalization in a savepoint. The order is paid at this
// point, so a failure here is logged for follow-up instead of undoing it.
func (v *Verifier) complete(ctx context.Context, tx *repository.Store, order *models.Order, amount int64) {
	err := tx.Transaction(ctx, func(inner *repository.Store) error {
		if err := v.finalizer.CompleteOrder(ctx, inner, order); err != nil {
			return err
		}
		if order.AffiliateCode == "" {
			return nil
		}
		return v.affiliates.RecordSale(ctx, inner, order, amount)
	})
	if err != nil {
		v.logger.Error("order finalization failed after payment",
			zap.String("order", order.ShortID),
			zap.Error(err))
	}
}

// recordFailure marks the attempt failed without touching a payment that
// was already received.
func (v *Verifier) recordFailure(tx *repository.Store, order *models.Order, binding *models.PaymentBinding, reason string) error {
	if err := tx.Bindings.Update(binding.ID, map[string]interface{}{"last_error": reason}); err != nil {
		return err
	}
	_, err := tx.Orders.CompareAndUpdate(order.ID, repository.OrderGuard{
		Statuses:        []models.OrderStatus{models.OrderStatusReserved},
		PaymentStatuses: []models.PaymentStatus{models.PaymentStatusAwaiting, models.PaymentStatusFailed},
	}, map[string]interface{}{"payment_status": models.PaymentStatusFailed})
	return err
}

// checkPayment validates a fetched payment against the order it claims to pay.
func checkPayment(payment *GatewayPayment, order *models.Order, binding *models.PaymentBinding) error {
	if !payment.Settled() {
		return fmt.Errorf("%w: status %q", ErrPaymentNotSuccessful, payment.Status)
	}
	if payment.OrderID != "" && payment.OrderID != binding.GatewayOrderID {
		return ErrOrderIDMismatch
	}
	expected, err := ToMinorUnits(order.TotalGross, order.Currency)
	if err != nil {
		return err
	}
	if err := CheckAmount(expected, payment.Amount); err != nil {
		return err
	}
	return CheckCurrency(order.Currency, payment.Currency)
}

// bindPayment attaches paymentID to the binding, failing when a different
// payment is already attached.
func bindPayment(tx *repository.Store, binding *models.PaymentBinding, paymentID string, updates map[string]interface{}) error {
	ok, err := tx.Bindings.BindPayment(binding.ID, paymentID, updates)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// Some drivers report zero affected rows when nothing changed.
	current, err := tx.Bindings.FindByOrderID(binding.OrderID)
	if err != nil {
		return err
	}
	if current.PaymentID() != paymentID {
		return ErrPaymentIDConflict
	}
	return nil
}

func resultFor(order *models.Order, binding *models.PaymentBinding, already bool) *VerificationResult {
	return &VerificationResult{
		Verified:         true,
		AlreadyProcessed: already,
		Captured:         order.Status == models.OrderStatusCompleted,
		OrderID:          order.ID,
		GatewayPaymentID: binding.PaymentID(),
		PaymentStatus:    order.PaymentStatus,
		OrderStatus:      order.Status,
	}
}
