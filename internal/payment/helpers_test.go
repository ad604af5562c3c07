package payment_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paysync/internal/fulfillment"
	"paysync/internal/models"
	"paysync/internal/payment"
	"paysync/internal/payment/paymenttest"
	"paysync/internal/repository"
	"paysync/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	store    *repository.Store
	gw       *paymenttest.Gateway
	notifier *paymenttest.Notifier
	binder   *payment.Binder
	verifier *payment.Verifier
	pipeline *payment.WebhookPipeline
	refunds  *payment.RefundOrchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	gw := paymenttest.New()
	notifier := &paymenttest.Notifier{}
	logger := zap.NewNop()

	finalizer := fulfillment.NewFinalizer(logger)
	affiliates := fulfillment.NewAffiliateLedger(logger)
	handlers := payment.NewEventHandlers(finalizer, affiliates, logger)

	return &fixture{
		db:       db,
		store:    store,
		gw:       gw,
		notifier: notifier,
		binder:   payment.NewBinder(store, gw, logger),
		verifier: payment.NewVerifier(store, gw, finalizer, affiliates, notifier, logger),
		pipeline: payment.NewWebhookPipeline(store, gw, handlers, notifier, payment.DefaultMarkerTTL, logger),
		refunds:  payment.NewRefundOrchestrator(store, gw, notifier, logger),
	}
}

// boundOrder seeds a 50.00 INR order with a binding created through the
// binder.
func (f *fixture) boundOrder(t *testing.T, opts ...testutil.OrderOption) (*models.Order, *models.PaymentBinding) {
	t.Helper()
	order := testutil.SeedOrder(t, f.db, opts...)
	binding, err := f.binder.CreateBinding(context.Background(), order, 5000, "INR", nil)
	require.NoError(t, err)
	return order, binding
}

// paidOrder seeds an order completed by a captured payment of 5000 paise.
func (f *fixture) paidOrder(t *testing.T) (*models.Order, *models.PaymentBinding) {
	t.Helper()
	order, binding := f.boundOrder(t)
	paymentID := "pay_" + order.ShortID
	f.gw.AddPayment(payment.GatewayPayment{
		ID: paymentID, OrderID: binding.GatewayOrderID, Amount: 5000, Currency: "INR", Status: payment.GatewayPaymentCaptured,
	})
	outcome, err := f.deliver(t, paymentEvent(t, "payment.captured", binding.GatewayOrderID, paymentID, 5000))
	require.NoError(t, err)
	require.Equal(t, payment.OutcomeApplied, outcome)
	return testutil.ReloadOrder(t, f.db, order.ID), testutil.ReloadBinding(t, f.db, order.ID)
}

func (f *fixture) deliver(t *testing.T, body []byte) (payment.Outcome, error) {
	t.Helper()
	return f.pipeline.Handle(context.Background(), body, paymenttest.SignWebhook(body))
}

func paymentEvent(t *testing.T, event, gatewayOrderID, paymentID string, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"entity":   "event",
		"event":    event,
		"contains": []string{"payment"},
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":                paymentID,
					"entity":            "payment",
					"amount":            amount,
					"currency":          "INR",
					"status":            "captured",
					"order_id":          gatewayOrderID,
					"amount_refunded":   0,
					"error_code":        nil,
					"error_description": nil,
				},
			},
		},
		"created_at": 1700000000,
	})
	require.NoError(t, err)
	return body
}

func failedEvent(t *testing.T, gatewayOrderID, paymentID, code, description string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": "payment.failed",
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":                paymentID,
					"amount":            5000,
					"currency":          "INR",
					"status":            "failed",
					"order_id":          gatewayOrderID,
					"error_code":        code,
					"error_description": description,
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func refundEvent(t *testing.T, paymentID, refundID string, amount, amountRefunded int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": "refund.processed",
		"payload": map[string]interface{}{
			"refund": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":         refundID,
					"payment_id": paymentID,
					"amount":     amount,
					"currency":   "INR",
					"status":     "processed",
				},
			},
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":              paymentID,
					"amount":          5000,
					"currency":        "INR",
					"status":          "refunded",
					"amount_refunded": amountRefunded,
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

// refundOnlyEvent is a refund.processed body without a payment entity.
func refundOnlyEvent(paymentID, refundID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":%q,"payment_id":%q,"amount":%d,"currency":"INR"}}}}`,
		refundID, paymentID, amount))
}

// stock returns the stock of the product on the order's first item.
func stock(t *testing.T, db *gorm.DB, orderID uint) int {
	t.Helper()
	var item models.OrderItem
	require.NoError(t, db.Where("order_id = ?", orderID).First(&item).Error)
	var product models.Product
	require.NoError(t, db.First(&product, item.ProductID).Error)
	return product.Stock
}

func attendeeStatus(t *testing.T, db *gorm.DB, orderID uint) models.AttendeeStatus {
	t.Helper()
	var attendee models.Attendee
	require.NoError(t, db.Where("order_id = ?", orderID).First(&attendee).Error)
	return attendee.Status
}
