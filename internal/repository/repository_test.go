package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysync/internal/models"
	"paysync/internal/testutil"
)

func TestMarkerAcquire(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := "payment.captured:pay_1"

	ok, err := store.Markers.Acquire(key, "payment.captured", time.Hour, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Markers.Acquire(key, "payment.captured", time.Hour, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "live marker suppresses")

	ok, err = store.Markers.Acquire(key, "payment.captured", time.Hour, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok, "expired marker is replaced")

	marker, err := store.Markers.Find(key)
	require.NoError(t, err)
	assert.True(t, marker.ExpiresAt.Equal(now.Add(2*time.Hour)))
}

func TestMarkerPurgeExpired(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Markers.Acquire("a", "payment.failed", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = store.Markers.Acquire("b", "payment.failed", time.Hour, now)
	require.NoError(t, err)

	n, err := store.Markers.PurgeExpired(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Markers.Find("b")
	assert.NoError(t, err)
}

func TestTransactionRollsBackMarker(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	now := time.Now().UTC()
	boom := errors.New("boom")

	err := store.Transaction(context.Background(), func(tx *Store) error {
		ok, err := tx.Markers.Acquire("k", "payment.captured", time.Hour, now)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := store.Markers.Acquire("k", "payment.captured", time.Hour, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNestedTransactionIsSavepoint(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	order := testutil.SeedOrder(t, db)
	boom := errors.New("boom")

	err := store.Transaction(context.Background(), func(tx *Store) error {
		if err := tx.Orders.UpdateFields(order.ID, map[string]interface{}{"email": "outer@example.com"}); err != nil {
			return err
		}
		inner := tx.Transaction(context.Background(), func(tx *Store) error {
			if err := tx.Orders.UpdateFields(order.ID, map[string]interface{}{"email": "inner@example.com"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, inner, boom)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "outer@example.com", testutil.ReloadOrder(t, db, order.ID).Email)
}

func TestOrderCompareAndUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	order := testutil.SeedOrder(t, db)

	guard := OrderGuard{
		Statuses:        []models.OrderStatus{models.OrderStatusReserved},
		PaymentStatuses: []models.PaymentStatus{models.PaymentStatusAwaiting},
	}
	ok, err := store.Orders.CompareAndUpdate(order.ID, guard, map[string]interface{}{
		"status":         models.OrderStatusCompleted,
		"payment_status": models.PaymentStatusReceived,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Orders.CompareAndUpdate(order.ID, guard, map[string]interface{}{
		"payment_status": models.PaymentStatusFailed,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got := testutil.ReloadOrder(t, db, order.ID)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	assert.Equal(t, models.PaymentStatusReceived, got.PaymentStatus)
}

func TestOrderLookups(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	order := testutil.SeedOrder(t, db)

	byShort, err := store.Orders.FindByShortID(order.ShortID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byShort.ID)

	locked, err := store.Orders.LockByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ShortID, locked.ShortID)

	_, err = store.Orders.FindByShortID("missing")
	assert.Error(t, err)
}

func TestBindPayment(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	order := testutil.SeedOrder(t, db)
	binding := testutil.SeedBinding(t, db, order, "order_g1")

	ok, err := store.Bindings.BindPayment(binding.ID, "pay_1", map[string]interface{}{"amount_received": int64(5000)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Bindings.BindPayment(binding.ID, "pay_2", nil)
	require.NoError(t, err)
	assert.False(t, ok, "a different payment id cannot replace the bound one")

	got := testutil.ReloadBinding(t, db, order.ID)
	assert.Equal(t, "pay_1", got.PaymentID())
	assert.Equal(t, int64(5000), got.Received())

	byPayment, err := store.Bindings.LockByGatewayPaymentID("pay_1")
	require.NoError(t, err)
	assert.Equal(t, binding.ID, byPayment.ID)
}

func TestBindingUniquePerOrder(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	order := testutil.SeedOrder(t, db)
	testutil.SeedBinding(t, db, order, "order_g1")

	err := store.Bindings.Create(&models.PaymentBinding{OrderID: order.ID, GatewayOrderID: "order_g2", Amount: 5000, Currency: "INR"})
	assert.Error(t, err)
}

func TestFlagAndListNeedingReconciliation(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	first := testutil.SeedBinding(t, db, testutil.SeedOrder(t, db), "order_g1")
	testutil.SeedBinding(t, db, testutil.SeedOrder(t, db), "order_g2")

	require.NoError(t, store.Bindings.Flag(first.ID, "amount mismatch", nil))

	flagged, err := store.Bindings.ListNeedingReconciliation(0)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "order_g1", flagged[0].GatewayOrderID)
	assert.Equal(t, "amount mismatch", flagged[0].ReconciliationReason)
	require.NotNil(t, flagged[0].LastError)
}

func TestExpireReservations(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	now := time.Now().UTC()
	lapsed := testutil.SeedOrder(t, db, testutil.WithReservedUntil(now.Add(-time.Second)))
	live := testutil.SeedOrder(t, db, testutil.WithReservedUntil(now.Add(time.Hour)))

	n, err := store.Orders.ExpireReservations(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.OrderStatusExpired, testutil.ReloadOrder(t, db, lapsed.ID).Status)
	assert.Equal(t, models.OrderStatusReserved, testutil.ReloadOrder(t, db, live.ID).Status)
}

func TestInventoryFulfilment(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	order := testutil.SeedOrder(t, db)

	items, err := store.Inventory.PendingItems(order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	ok, err := store.Inventory.MarkItemFulfilled(items[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Inventory.MarkItemFulfilled(items[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Inventory.DecrementStock(items[0].ProductID, items[0].Quantity))
	product, err := store.Inventory.FindProduct(items[0].ProductID)
	require.NoError(t, err)
	assert.Equal(t, 8, product.Stock)

	n, err := store.Inventory.ActivateAttendees(order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sale := &models.AffiliateSale{OrderID: order.ID, AffiliateCode: "aff", AmountMinor: 5000, Currency: "INR"}
	inserted, err := store.Inventory.RecordAffiliateSale(sale)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = store.Inventory.RecordAffiliateSale(&models.AffiliateSale{OrderID: order.ID, AffiliateCode: "aff", AmountMinor: 5000, Currency: "INR"})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestRefundRecordOncePerRefundID(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	binding := testutil.SeedBinding(t, db, testutil.SeedOrder(t, db), "order_g1")

	inserted, err := store.Refunds.Record(&models.Refund{BindingID: binding.ID, RefundID: "rfnd_1", Amount: 1000, Currency: "INR", Source: models.RefundSourceOperator})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Refunds.Record(&models.Refund{BindingID: binding.ID, RefundID: "rfnd_1", Amount: 1000, Currency: "INR", Source: models.RefundSourceWebhook})
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = store.Refunds.Record(&models.Refund{BindingID: binding.ID, RefundID: "rfnd_2", Amount: 500, Currency: "INR", Source: models.RefundSourceWebhook})
	require.NoError(t, err)

	refunds, err := store.Refunds.ListByBindingID(binding.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	assert.Equal(t, models.RefundSourceOperator, refunds[0].Source)
	assert.Equal(t, "rfnd_2", refunds[1].RefundID)
}
