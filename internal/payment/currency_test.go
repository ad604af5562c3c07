package payment_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysync/internal/payment"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
		wantErr  error
	}{
		{"50.00", "INR", 5000, nil},
		{"50", "inr", 5000, nil},
		{"0.01", "USD", 1, nil},
		{"1999", "JPY", 1999, nil},
		{"1.234", "KWD", 1234, nil},
		{"10.005", "INR", 0, payment.ErrAmountPrecision},
		{"1.5", "JPY", 0, payment.ErrAmountPrecision},
		{"10.00", "XYZ", 0, payment.ErrUnsupportedCurrency},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.amount, tt.currency), func(t *testing.T) {
			got, err := payment.ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, payment.ValidateAmount(100, "INR"))
	assert.NoError(t, payment.ValidateAmount(1_500_000_000, "INR"))
	assert.ErrorIs(t, payment.ValidateAmount(99, "INR"), payment.ErrAmountBelowMinimum)
	assert.ErrorIs(t, payment.ValidateAmount(1_500_000_001, "INR"), payment.ErrAmountAboveMaximum)
	assert.ErrorIs(t, payment.ValidateAmount(0, "INR"), payment.ErrAmountNotPositive)
	assert.ErrorIs(t, payment.ValidateAmount(-1, "USD"), payment.ErrAmountNotPositive)

	// Bounds only apply to the primary currency.
	assert.NoError(t, payment.ValidateAmount(1, "USD"))
	assert.NoError(t, payment.ValidateAmount(5_000_000_000, "EUR"))

	assert.ErrorIs(t, payment.ValidateAmount(1000, "BTC"), payment.ErrUnsupportedCurrency)
}

func TestCheckAmountIsExact(t *testing.T) {
	assert.NoError(t, payment.CheckAmount(5000, 5000))
	assert.ErrorIs(t, payment.CheckAmount(5000, 5001), payment.ErrAmountMismatch)
	assert.ErrorIs(t, payment.CheckAmount(5000, 4999), payment.ErrAmountMismatch)
}

func TestCheckCurrency(t *testing.T) {
	assert.NoError(t, payment.CheckCurrency("INR", "inr"))
	assert.ErrorIs(t, payment.CheckCurrency("INR", "USD"), payment.ErrCurrencyMismatch)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want payment.Kind
	}{
		{payment.ErrOrderNotFound, payment.KindNotFound},
		{fmt.Errorf("wrap: %w", payment.ErrAmountMismatch), payment.KindValidation},
		{payment.ErrOrderIDMismatch, payment.KindConflict},
		{payment.ErrAlreadyFullyRefunded, payment.KindConflict},
		{payment.ErrSignatureVerificationFailed, payment.KindAuth},
		{&payment.GatewayError{Kind: payment.ErrGatewayUnavailable}, payment.KindUnavailable},
		{fmt.Errorf("%w: %w", payment.ErrOrderCreationFailed, &payment.GatewayError{Kind: payment.ErrGatewayAuthInvalid}), payment.KindUpstream},
		{payment.ErrPaymentAcceptedForExpiredOrder, payment.KindReconciliation},
		{fmt.Errorf("disk full"), payment.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, payment.KindOf(tt.err))
		})
	}
	assert.True(t, payment.KindUnavailable.Retryable())
	assert.False(t, payment.KindUpstream.Retryable())
}
