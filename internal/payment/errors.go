package payment

import "errors"

// Order state and identity.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderState  = errors.New("order is not awaiting payment")
	ErrOrderExpired       = errors.New("order reservation has expired")
	ErrOrderIDMismatch    = errors.New("gateway order id does not match the order")
	ErrPaymentIDConflict  = errors.New("order is already bound to a different payment")
	ErrOrderStateConflict = errors.New("order was updated concurrently")
)

// Payment validation.
var (
	ErrSignatureVerificationFailed = errors.New("payment signature verification failed")
	ErrPaymentNotSuccessful        = errors.New("payment is neither captured nor authorized")
	ErrAmountMismatch              = errors.New("payment amount does not match the order total")
	ErrCurrencyMismatch            = errors.New("payment currency does not match the order currency")
	ErrUnsupportedCurrency         = errors.New("currency is not supported by the gateway")
	ErrAmountNotPositive           = errors.New("amount must be greater than zero")
	ErrAmountBelowMinimum          = errors.New("amount is below the gateway minimum")
	ErrAmountAboveMaximum          = errors.New("amount is above the gateway maximum")
	ErrAmountPrecision             = errors.New("amount has more precision than the currency allows")
	ErrOrderCreationFailed         = errors.New("gateway order creation failed")
)

// Webhooks.
var (
	ErrInvalidWebhookSignature        = errors.New("invalid webhook signature")
	ErrMalformedWebhookPayload        = errors.New("malformed webhook payload")
	ErrPaymentAcceptedForExpiredOrder = errors.New("payment captured for an expired order")
)

// Refunds.
var (
	ErrNoPaymentToRefund      = errors.New("order has no confirmed payment to refund")
	ErrAlreadyFullyRefunded   = errors.New("order is already fully refunded")
	ErrOrderNotRefundable     = errors.New("order is not in a refundable state")
	ErrPaymentNotRefundable   = errors.New("payment is neither captured nor authorized at the gateway")
	ErrRefundAmountZero       = errors.New("refund amount is zero")
	ErrRefundAmountNegative   = errors.New("refund amount is negative")
	ErrRefundBelowMinimum     = errors.New("refund amount is below the gateway minimum")
	ErrRefundExceedsPayment   = errors.New("refund amount exceeds the amount received")
	ErrRefundExceedsRemaining = errors.New("refund amount exceeds the amount left to refund")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindAuth
	// KindUnavailable is the only retryable kind.
	KindUnavailable
	// KindUpstream is a non-retryable gateway rejection of our own request.
	KindUpstream
	KindReconciliation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindUnavailable:
		return "unavailable"
	case KindUpstream:
		return "upstream"
	case KindReconciliation:
		return "reconciliation"
	default:
		return "internal"
	}
}

// Retryable reports whether retrying the same call may succeed.
func (k Kind) Retryable() bool {
	return k == KindUnavailable
}

var kindTable = []struct {
	kind Kind
	errs []error
}{
	// Gateway kinds first: ErrOrderCreationFailed wraps them.
	{KindUnavailable, []error{ErrGatewayUnavailable}},
	{KindUpstream, []error{ErrGatewayRequestInvalid, ErrGatewayAuthInvalid}},
	{KindNotFound, []error{ErrOrderNotFound}},
	{KindAuth, []error{ErrSignatureVerificationFailed, ErrInvalidWebhookSignature}},
	{KindReconciliation, []error{ErrPaymentAcceptedForExpiredOrder}},
	{KindConflict, []error{
		ErrInvalidOrderState, ErrOrderExpired, ErrOrderIDMismatch, ErrPaymentIDConflict,
		ErrOrderStateConflict, ErrNoPaymentToRefund, ErrAlreadyFullyRefunded,
		ErrOrderNotRefundable, ErrPaymentNotRefundable,
	}},
	{KindValidation, []error{
		ErrPaymentNotSuccessful, ErrAmountMismatch, ErrCurrencyMismatch, ErrUnsupportedCurrency,
		ErrAmountNotPositive, ErrAmountBelowMinimum, ErrAmountAboveMaximum, ErrAmountPrecision,
		ErrMalformedWebhookPayload, ErrRefundAmountZero, ErrRefundAmountNegative,
		ErrRefundBelowMinimum, ErrRefundExceedsPayment, ErrRefundExceedsRemaining,
	}},
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, row := range kindTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.kind
			}
		}
	}
	return KindInternal
}
