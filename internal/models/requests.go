package models

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// --- Checkout API payloads ---

type CreateCheckoutOrderRequest struct {
	OrderShortID string `json:"order_short_id"`
	SessionID    string `json:"session_id"`
}

type CheckoutOrderResponse struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

type VerifyPaymentRequest struct {
	OrderShortID      string `json:"order_short_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type VerifyPaymentResponse struct {
	Verified      bool          `json:"verified"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
	OrderStatus   OrderStatus   `json:"order_status,omitempty"`
}

// --- Operator API payloads ---

type RefundOrderRequest struct {
	OrderID     uint   `json:"order_id"`
	Amount      int64  `json:"amount"`
	CancelOrder bool   `json:"cancel_order"`
	NotifyBuyer bool   `json:"notify_buyer"`
	Reason      string `json:"reason,omitempty"`
}

type RefundOrderResponse struct {
	RefundID     string       `json:"refund_id"`
	RefundStatus RefundStatus `json:"refund_status"`
	Amount       int64        `json:"amount"`
}
