// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paysync/internal/bootstrap"
	"paysync/internal/models"
)

// NewDB opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection so concurrent transactions queue up
// the way row locks would serialize them in MySQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, bootstrap.Migrate(db))
	return db
}

// OrderOption adjusts a seeded order.
type OrderOption func(*models.Order)

// WithStatus overrides the seeded order's status pair.
func WithStatus(status models.OrderStatus, payment models.PaymentStatus) OrderOption {
	return func(o *models.Order) {
		o.Status = status
		o.PaymentStatus = payment
	}
}

// WithReservedUntil overrides the reservation expiry.
func WithReservedUntil(at time.Time) OrderOption {
	return func(o *models.Order) { o.ReservedUntil = at }
}

// WithTotal overrides the gross total and currency.
func WithTotal(total string, currency string) OrderOption {
	return func(o *models.Order) {
		o.TotalGross = decimal.RequireFromString(total)
		o.Currency = currency
	}
}

// WithAffiliate sets the affiliate code.
func WithAffiliate(code string) OrderOption {
	return func(o *models.Order) { o.AffiliateCode = code }
}

// SeedOrder inserts a RESERVED, AWAITING_PAYMENT order of 50.00 INR
// reserved for the next 15 minutes, one item of one seeded product and one
// pending attendee.
func SeedOrder(t *testing.T, db *gorm.DB, opts ...OrderOption) *models.Order {
	t.Helper()

	order := &models.Order{
		ShortID:       "o_" + uuid.NewString()[:8],
		SessionID:     "sess-" + uuid.NewString()[:8],
		Email:         "buyer@example.com",
		Status:        models.OrderStatusReserved,
		PaymentStatus: models.PaymentStatusAwaiting,
		TotalGross:    decimal.RequireFromString("50.00"),
		Currency:      "INR",
		ReservedUntil: time.Now().UTC().Add(15 * time.Minute),
	}
	for _, opt := range opts {
		opt(order)
	}
	require.NoError(t, db.Create(order).Error)

	product := &models.Product{Title: "General admission", Stock: 10}
	require.NoError(t, db.Create(product).Error)
	require.NoError(t, db.Create(&models.OrderItem{OrderID: order.ID, ProductID: product.ID, Quantity: 2}).Error)
	require.NoError(t, db.Create(&models.Attendee{
		OrderID:   order.ID,
		ProductID: product.ID,
		Email:     order.Email,
		Status:    models.AttendeeStatusPending,
	}).Error)
	return order
}

// SeedBinding inserts a binding for order with the given gateway order id.
func SeedBinding(t *testing.T, db *gorm.DB, order *models.Order, gatewayOrderID string) *models.PaymentBinding {
	t.Helper()

	binding := &models.PaymentBinding{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrderID,
		Amount:         5000,
		Currency:       order.Currency,
	}
	require.NoError(t, db.Create(binding).Error)
	return binding
}

// ReloadOrder reads the order back.
func ReloadOrder(t *testing.T, db *gorm.DB, id uint) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.First(&order, id).Error)
	return &order
}

// ReloadBinding reads the binding of an order back.
func ReloadBinding(t *testing.T, db *gorm.DB, orderID uint) *models.PaymentBinding {
	t.Helper()
	var binding models.PaymentBinding
	require.NoError(t, db.Where("order_id = ?", orderID).First(&binding).Error)
	return &binding
}
