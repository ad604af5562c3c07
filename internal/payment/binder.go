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

// Binder creates the gateway order for an internal order and stores the
// link between the two. An order is bound at most once.
type Binder struct {
	store   *repository.Store
	gateway Gateway
	logger  *zap.Logger
	now     func() time.Time
}

func NewBinder(store *repository.Store, gateway Gateway, logger *zap.Logger) *Binder {
	return &Binder{store: store, gateway: gateway, logger: logger, now: systemNow}
}

// CheckoutSession is what the browser needs to open the gateway widget.
type CheckoutSession struct {
	OrderShortID   string
	GatewayOrderID string
	Amount         int64
	Currency       string
	KeyID          string
}

// CreateBinding returns the order's binding, creating the gateway order
// first if none exists yet.
func (b *Binder) CreateBinding(ctx context.Context, order *models.Order, amount int64, currency string, notes map[string]string) (*models.PaymentBinding, error) {
	var binding *models.PaymentBinding
	err := b.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Orders.LockByID(order.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		var err error
		binding, err = b.bind(ctx, tx, order, amount, currency, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return binding, nil
}

// PrepareCheckout validates the order behind shortID and returns a checkout
// session bound to its gateway order. sessionID must match the session that
// created the order. A previously failed attempt moves the order back to
// AWAITING_PAYMENT.
func (b *Binder) PrepareCheckout(ctx context.Context, shortID, sessionID string) (*CheckoutSession, error) {
	var session *CheckoutSession
	err := b.store.Transaction(ctx, func(tx *repository.Store) error {
		order, err := tx.Orders.LockByShortID(shortID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if sessionID == "" || order.SessionID != sessionID {
			return ErrOrderNotFound
		}
		if order.Status != models.OrderStatusReserved || order.PaymentStatus == models.PaymentStatusReceived {
			return fmt.Errorf("%w: %s/%s", ErrInvalidOrderState, order.Status, order.PaymentStatus)
		}
		if order.ReservationLapsed(b.now()) {
			return ErrOrderExpired
		}

		currency := NormalizeCurrency(order.Currency)
		amount, err := ToMinorUnits(order.TotalGross, currency)
		if err != nil {
			return err
		}
		if err := ValidateAmount(amount, currency); err != nil {
			return err
		}

		binding, err := b.bind(ctx, tx, order, amount, currency, map[string]string{
			"order_short_id": order.ShortID,
		})
		if err != nil {
			return err
		}

		if order.PaymentStatus == models.PaymentStatusFailed {
			if _, err := tx.Orders.CompareAndUpdate(order.ID, repository.OrderGuard{
				Statuses:        []models.OrderStatus{models.OrderStatusReserved},
				PaymentStatuses: []models.PaymentStatus{models.PaymentStatusFailed},
			}, map[string]interface{}{"payment_status": models.PaymentStatusAwaiting}); err != nil {
				return err
			}
		}

		session = &CheckoutSession{
			OrderShortID:   order.ShortID,
			GatewayOrderID: binding.GatewayOrderID,
			Amount:         binding.Amount,
			Currency:       binding.Currency,
			KeyID:          b.gateway.KeyID(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// bind expects the order row to be locked by tx.
func (b *Binder) bind(ctx context.Context, tx *repository.Store, order *models.Order, amount int64, currency string, notes map[string]string) (*models.PaymentBinding, error) {
	existing, err := tx.Bindings.LockByOrderID(order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	currency = NormalizeCurrency(currency)
	if err := ValidateAmount(amount, currency); err != nil {
		return nil, err
	}

	gwOrder, err := b.gateway.CreateOrder(ctx, CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  uuid.NewString(),
		Notes:    notes,
	})
	if err != nil {
		b.logger.Error("gateway order creation failed",
			zap.String("order", order.ShortID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	binding := &models.PaymentBinding{
		OrderID:        order.ID,
		GatewayOrderID: gwOrder.ID,
		Amount:         amount,
		Currency:       currency,
	}
	if err := tx.Bindings.Create(binding); err != nil {
		// A concurrent creator may have won the unique index.
		if stored, findErr := tx.Bindings.FindByOrderID(order.ID); findErr == nil {
			b.logger.Warn("payment binding already stored, discarding new gateway order",
				zap.String("order", order.ShortID),
				zap.String("gateway_order_id", gwOrder.ID),
				zap.String("stored_gateway_order_id", stored.GatewayOrderID))
			return stored, nil
		}
		return nil, fmt.Errorf("store payment binding: %w", err)
	}

	b.logger.Info("payment binding created",
		zap.String("order", order.ShortID),
		zap.String("gateway_order_id", gwOrder.ID),
		zap.Int64("amount", amount),
		zap.String("currency", currency))
	return binding, nil
}
