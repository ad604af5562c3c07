package models

import "time"

// PaymentBinding maps to the `payment_bindings` table. It links one order to
// the gateway order created for it and accumulates what the gateway reported
// about the payment. Rows are never deleted.
type PaymentBinding struct {
	ID                   uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID              uint      `gorm:"column:order_id;uniqueIndex" json:"order_id"`
	GatewayOrderID       string    `gorm:"column:gateway_order_id;size:64;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID     *string   `gorm:"column:gateway_payment_id;size:64;index" json:"gateway_payment_id"`
	Signature            *string   `gorm:"column:signature;size:128" json:"-"`
	Amount               int64     `gorm:"column:amount" json:"amount"`
	Currency             string    `gorm:"column:currency;size:3" json:"currency"`
	AmountReceived       *int64    `gorm:"column:amount_received" json:"amount_received"`
	AmountRefunded       int64     `gorm:"column:amount_refunded;default:0" json:"amount_refunded"`
	RefundID             *string   `gorm:"column:refund_id;size:64" json:"refund_id"`
	LastError            *string   `gorm:"column:last_error;type:text" json:"last_error"`
	NeedsReconciliation  bool      `gorm:"column:needs_reconciliation;default:false;index" json:"needs_reconciliation"`
	ReconciliationReason string    `gorm:"column:reconciliation_reason;type:text" json:"reconciliation_reason,omitempty"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PaymentBinding) TableName() string {
	return "payment_bindings"
}

// PaymentID returns the bound gateway payment id or "".
func (b *PaymentBinding) PaymentID() string {
	if b.GatewayPaymentID == nil {
		return ""
	}
	return *b.GatewayPaymentID
}

// Received returns the amount received in minor units, 0 when unconfirmed.
func (b *PaymentBinding) Received() int64 {
	if b.AmountReceived == nil {
		return 0
	}
	return *b.AmountReceived
}
