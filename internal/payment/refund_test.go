package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysync/internal/models"
	"paysync/internal/payment"
	"paysync/internal/testutil"
)

func TestCheckRefundAmountBounds(t *testing.T) {
	tests := []struct {
		amount int64
		want   error
	}{
		{0, payment.ErrRefundAmountZero},
		{-100, payment.ErrRefundAmountNegative},
		{50, payment.ErrRefundBelowMinimum},
		{6000, payment.ErrRefundExceedsPayment},
	}
	seen := map[error]bool{}
	for _, tt := range tests {
		err := payment.CheckRefundAmount(tt.amount, 5000, 0, "INR")
		assert.ErrorIs(t, err, tt.want, "amount %d", tt.amount)
		seen[tt.want] = true
	}
	assert.Len(t, seen, len(tests), "every rejection has its own reason")

	assert.NoError(t, payment.CheckRefundAmount(5000, 5000, 0, "INR"))
	assert.NoError(t, payment.CheckRefundAmount(2500, 5000, 0, "INR"))
	assert.ErrorIs(t, payment.CheckRefundAmount(3000, 5000, 2500, "INR"), payment.ErrRefundExceedsRemaining)
	assert.NoError(t, payment.CheckRefundAmount(50, 5000, 0, "USD"))
}

func TestIsRefundEligible(t *testing.T) {
	paid := "pay_1"
	received := int64(5000)
	full := models.RefundStatusFull
	partial := models.RefundStatusPartial
	binding := &models.PaymentBinding{GatewayPaymentID: &paid, AmountReceived: &received}

	assert.NoError(t, payment.IsRefundEligible(&models.Order{Status: models.OrderStatusCompleted}, binding))
	assert.NoError(t, payment.IsRefundEligible(&models.Order{Status: models.OrderStatusCancelled, RefundStatus: &partial}, binding))

	assert.ErrorIs(t, payment.IsRefundEligible(&models.Order{Status: models.OrderStatusCompleted}, nil), payment.ErrNoPaymentToRefund)
	assert.ErrorIs(t, payment.IsRefundEligible(&models.Order{Status: models.OrderStatusCompleted}, &models.PaymentBinding{}), payment.ErrNoPaymentToRefund)
	assert.ErrorIs(t, payment.IsRefundEligible(&models.Order{Status: models.OrderStatusCompleted, RefundStatus: &full}, binding), payment.ErrAlreadyFullyRefunded)
	assert.ErrorIs(t, payment.IsRefundEligible(&models.Order{Status: models.OrderStatusReserved}, binding), payment.ErrOrderNotRefundable)
}

func TestRefundRejectsOutOfBoundsAmounts(t *testing.T) {
	f := newFixture(t)
	order, _ := f.paidOrder(t)

	for amount, want := range map[int64]error{
		0:    payment.ErrRefundAmountZero,
		-100: payment.ErrRefundAmountNegative,
		50:   payment.ErrRefundBelowMinimum,
		6000: payment.ErrRefundExceedsPayment,
	} {
		_, err := f.refunds.Refund(context.Background(), order.ID, amount, payment.RefundOptions{})
		assert.ErrorIs(t, err, want, "amount %d", amount)
	}
	assert.Empty(t, f.gw.Refunds())
	assert.Nil(t, testutil.ReloadOrder(t, f.db, order.ID).RefundStatus)
}

func TestFullRefund(t *testing.T) {
	f := newFixture(t)
	order, binding := f.paidOrder(t)

	res, err := f.refunds.Refund(context.Background(), order.ID, 5000, payment.RefundOptions{NotifyBuyer: true, Reason: "event cancelled"})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFull, res.RefundStatus)
	assert.NotEmpty(t, res.RefundID)

	got := testutil.ReloadOrder(t, f.db, order.ID)
	require.NotNil(t, got.RefundStatus)
	assert.Equal(t, models.RefundStatusFull, *got.RefundStatus)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)

	b := testutil.ReloadBinding(t, f.db, order.ID)
	assert.Equal(t, int64(5000), b.AmountRefunded)
	require.NotNil(t, b.RefundID)
	assert.Equal(t, res.RefundID, *b.RefundID)

	refunds := f.gw.Refunds()
	require.Len(t, refunds, 1)
	assert.Equal(t, binding.PaymentID(), refunds[0].PaymentID)
	assert.NotEmpty(t, refunds[0].IdempotencyKey)

	notes := f.notifier.OfType(payment.NotifyRefundIssued)
	require.Len(t, notes, 1)
	assert.Equal(t, "event cancelled", notes[0].Reason)
}

func TestPartialRefundThenRemaining(t *testing.T) {
	f := newFixture(t)
	order, _ := f.paidOrder(t)
	ctx := context.Background()

	res, err := f.refunds.Refund(ctx, order.ID, 2500, payment.RefundOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusPartial, res.RefundStatus)
	assert.Empty(t, f.notifier.OfType(payment.NotifyRefundIssued))

	_, err = f.refunds.Refund(ctx, order.ID, 3000, payment.RefundOptions{})
	assert.ErrorIs(t, err, payment.ErrRefundExceedsRemaining)

	res, err = f.refunds.Refund(ctx, order.ID, 2500, payment.RefundOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFull, res.RefundStatus)
	assert.Equal(t, int64(5000), res.AmountRefunded)
}

func TestRefundOfFullyRefundedOrderSkipsGateway(t *testing.T) {
	f := newFixture(t)
	order, _ := f.paidOrder(t)
	full := models.RefundStatusFull
	require.NoError(t, f.store.Orders.UpdateFields(order.ID, map[string]interface{}{"refund_status": full}))

	_, err := f.refunds.Refund(context.Background(), order.ID, 5000, payment.RefundOptions{})
	assert.ErrorIs(t, err, payment.ErrAlreadyFullyRefunded)
	assert.Empty(t, f.gw.Refunds())
}

func TestRefundCancelsOrderWhenAsked(t *testing.T) {
	f := newFixture(t)
	order, _ := f.paidOrder(t)

	res, err := f.refunds.Refund(context.Background(), order.ID, 1000, payment.RefundOptions{CancelOrder: true})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, res.OrderStatus)
	assert.Equal(t, models.OrderStatusCancelled, testutil.ReloadOrder(t, f.db, order.ID).Status)

	// The remaining balance can still be refunded.
	res, err = f.refunds.Refund(context.Background(), order.ID, 4000, payment.RefundOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFull, res.RefundStatus)
}

func TestRefundPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.refunds.Refund(ctx, 9999, 100, payment.RefundOptions{})
		assert.ErrorIs(t, err, payment.ErrOrderNotFound)
	})

	t.Run("no binding", func(t *testing.T) {
		f := newFixture(t)
		order := testutil.SeedOrder(t, f.db, testutil.WithStatus(models.OrderStatusCompleted, models.PaymentStatusReceived))
		_, err := f.refunds.Refund(ctx, order.ID, 100, payment.RefundOptions{})
		assert.ErrorIs(t, err, payment.ErrNoPaymentToRefund)
	})

	t.Run("unpaid binding", func(t *testing.T) {
		f := newFixture(t)
		order, _ := f.boundOrder(t, testutil.WithStatus(models.OrderStatusCompleted, models.PaymentStatusReceived))
		_, err := f.refunds.Refund(ctx, order.ID, 100, payment.RefundOptions{})
		assert.ErrorIs(t, err, payment.ErrNoPaymentToRefund)
	})

	t.Run("payment not settled at gateway", func(t *testing.T) {
		f := newFixture(t)
		order, binding := f.paidOrder(t)
		f.gw.AddPayment(payment.GatewayPayment{ID: binding.PaymentID(), Status: payment.GatewayPaymentRefunded})
		_, err := f.refunds.Refund(ctx, order.ID, 100, payment.RefundOptions{})
		assert.ErrorIs(t, err, payment.ErrPaymentNotRefundable)
		assert.Empty(t, f.gw.Refunds())
	})

	t.Run("gateway failure writes nothing", func(t *testing.T) {
		f := newFixture(t)
		order, _ := f.paidOrder(t)
		f.gw.RefundErr = &payment.GatewayError{Kind: payment.ErrGatewayUnavailable, StatusCode: 503}
		_, err := f.refunds.Refund(ctx, order.ID, 1000, payment.RefundOptions{CancelOrder: true})
		assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)

		got := testutil.ReloadOrder(t, f.db, order.ID)
		assert.Nil(t, got.RefundStatus)
		assert.Equal(t, models.OrderStatusCompleted, got.Status)
		b := testutil.ReloadBinding(t, f.db, order.ID)
		assert.Nil(t, b.RefundID)
		assert.Zero(t, b.AmountRefunded)
	})
}

func TestRefundSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	order, _ := f.paidOrder(t)
	f.notifier.Err = errors.New("smtp down")

	res, err := f.refunds.Refund(context.Background(), order.ID, 5000, payment.RefundOptions{NotifyBuyer: true})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFull, res.RefundStatus)
}
