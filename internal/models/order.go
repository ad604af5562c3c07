package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusReserved  OrderStatus = "RESERVED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// PaymentStatus tracks where the order is in the payment flow.
type PaymentStatus string

const (
	PaymentStatusAwaiting PaymentStatus = "AWAITING_PAYMENT"
	PaymentStatusReceived PaymentStatus = "PAYMENT_RECEIVED"
	PaymentStatusFailed   PaymentStatus = "PAYMENT_FAILED"
)

// RefundStatus is nil on the order until a refund has been issued.
type RefundStatus string

const (
	RefundStatusPartial RefundStatus = "PARTIAL_REFUND"
	RefundStatusFull    RefundStatus = "FULL_REFUND"
)

// Order maps to the `orders` table. The checkout side of the host
// application owns its creation; the payment flow only mutates the status
// columns.
type Order struct {
	ID            uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ShortID       string          `gorm:"column:short_id;size:64;uniqueIndex" json:"short_id"`
	SessionID     string          `gorm:"column:session_id;size:128;index" json:"-"`
	Email         string          `gorm:"column:email;size:255" json:"email"`
	Status        OrderStatus     `gorm:"column:status;size:20;index" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"column:payment_status;size:30" json:"payment_status"`
	RefundStatus  *RefundStatus   `gorm:"column:refund_status;size:30" json:"refund_status"`
	TotalGross    decimal.Decimal `gorm:"column:total_gross;type:decimal(14,3)" json:"total_gross"`
	Currency      string          `gorm:"column:currency;size:3" json:"currency"`
	AffiliateCode string          `gorm:"column:affiliate_code;size:100" json:"affiliate_code,omitempty"`
	ReservedUntil time.Time       `gorm:"column:reserved_until" json:"reserved_until"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// ReservationLapsed reports whether the reservation window has passed.
func (o *Order) ReservationLapsed(now time.Time) bool {
	return !o.ReservedUntil.IsZero() && !now.Before(o.ReservedUntil)
}

// IsExpired covers both an order already moved to EXPIRED and a RESERVED
// order whose window ran out before housekeeping caught it.
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == OrderStatusExpired || (o.Status == OrderStatusReserved && o.ReservationLapsed(now))
}

// OrderItem maps to the `order_items` table.
type OrderItem struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   uint      `gorm:"column:order_id;index" json:"order_id"`
	ProductID uint      `gorm:"column:product_id;index" json:"product_id"`
	Quantity  int       `gorm:"column:quantity" json:"quantity"`
	Fulfilled bool      `gorm:"column:fulfilled;default:false" json:"fulfilled"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
