package models

import "time"

// Product maps to the `products` table. Stock is decremented when an order
// is finalized, not when it is reserved.
type Product struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"column:title;size:255" json:"title"`
	Stock     int       `gorm:"column:stock;default:0" json:"stock"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// AttendeeStatus is PENDING until the owning order completes.
type AttendeeStatus string

const (
	AttendeeStatusPending AttendeeStatus = "PENDING"
	AttendeeStatusActive  AttendeeStatus = "ACTIVE"
)

// Attendee maps to the `attendees` table.
type Attendee struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   uint           `gorm:"column:order_id;index" json:"order_id"`
	ProductID uint           `gorm:"column:product_id" json:"product_id"`
	Email     string         `gorm:"column:email;size:255" json:"email"`
	Status    AttendeeStatus `gorm:"column:status;size:20" json:"status"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Attendee) TableName() string {
	return "attendees"
}

// AffiliateSale records the commission-bearing sale for an affiliate code.
// One row per order.
type AffiliateSale struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID       uint      `gorm:"column:order_id;uniqueIndex" json:"order_id"`
	AffiliateCode string    `gorm:"column:affiliate_code;size:100;index" json:"affiliate_code"`
	AmountMinor   int64     `gorm:"column:amount_minor" json:"amount_minor"`
	Currency      string    `gorm:"column:currency;size:3" json:"currency"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AffiliateSale) TableName() string {
	return "affiliate_sales"
}
