package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PrimaryCurrency is the gateway's home currency, the only one with
// enforced order bounds.
const PrimaryCurrency = "INR"

const (
	// MinOrderAmount and MaxOrderAmount bound PrimaryCurrency orders, in paise.
	MinOrderAmount int64 = 100
	MaxOrderAmount int64 = 1_500_000_000

	// MinRefundAmount is the smallest refund accepted in PrimaryCurrency.
	MinRefundAmount int64 = 100
)

// currencyExponents lists the currencies the gateway accepts and the number
// of minor-unit digits each uses.
var currencyExponents = map[string]int32{
	"INR": 2, "USD": 2, "EUR": 2, "GBP": 2, "SGD": 2, "AED": 2, "AUD": 2,
	"CAD": 2, "CHF": 2, "HKD": 2, "MYR": 2, "NZD": 2, "SAR": 2, "SEK": 2,
	"DKK": 2, "NOK": 2, "ZAR": 2, "THB": 2, "QAR": 2, "LKR": 2, "NPR": 2,
	"BDT": 2, "PHP": 2, "CNY": 2, "MXN": 2,
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0,
	"KWD": 3, "BHD": 3, "OMR": 3, "JOD": 3,
}

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsSupportedCurrency reports whether the gateway accepts code.
func IsSupportedCurrency(code string) bool {
	_, ok := currencyExponents[NormalizeCurrency(code)]
	return ok
}

// ToMinorUnits converts a major-unit amount to an integer count of minor
// units. Amounts with more precision than the currency allows are rejected
// rather than rounded.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp, ok := currencyExponents[NormalizeCurrency(currency)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	minor := amount.Shift(exp)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s %s", ErrAmountPrecision, amount.String(), currency)
	}
	return minor.IntPart(), nil
}

// ValidateAmount checks an order amount, in minor units, against what the
// gateway will accept for currency.
func ValidateAmount(amount int64, currency string) error {
	code := NormalizeCurrency(currency)
	if !IsSupportedCurrency(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	if amount <= 0 {
		return ErrAmountNotPositive
	}
	if code != PrimaryCurrency {
		return nil
	}
	if amount < MinOrderAmount {
		return fmt.Errorf("%w: %d < %d", ErrAmountBelowMinimum, amount, MinOrderAmount)
	}
	if amount > MaxOrderAmount {
		return fmt.Errorf("%w: %d > %d", ErrAmountAboveMaximum, amount, MaxOrderAmount)
	}
	return nil
}

// CheckAmount requires the gateway-reported amount to equal the expected one
// exactly.
func CheckAmount(expected, actual int64) error {
	if expected != actual {
		return fmt.Errorf("%w: expected %d, got %d", ErrAmountMismatch, expected, actual)
	}
	return nil
}

// CheckCurrency requires the gateway-reported currency to equal the order's.
func CheckCurrency(expected, actual string) error {
	if NormalizeCurrency(expected) != NormalizeCurrency(actual) {
		return fmt.Errorf("%w: expected %s, got %s", ErrCurrencyMismatch, expected, actual)
	}
	return nil
}

func minRefund(currency string) int64 {
	if NormalizeCurrency(currency) == PrimaryCurrency {
		return MinRefundAmount
	}
	return 1
}
