package models

import "time"

// Refund source values.
const (
	RefundSourceOperator = "operator"
	RefundSourceWebhook  = "webhook"
)

// Refund maps to the `refunds` table: one row per gateway refund id seen on
// a binding, whether issued here or reported by a webhook.
type Refund struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BindingID uint      `gorm:"column:binding_id;index" json:"binding_id"`
	RefundID  string    `gorm:"column:refund_id;size:64;uniqueIndex" json:"refund_id"`
	Amount    int64     `gorm:"column:amount" json:"amount"`
	Currency  string    `gorm:"column:currency;size:3" json:"currency"`
	Source    string    `gorm:"column:source;size:16" json:"source"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Refund) TableName() string {
	return "refunds"
}
