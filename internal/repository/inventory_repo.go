package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paysync/internal/models"
)

// InventoryRepository handles stock, attendee and affiliate writes made when
// an order is finalized.
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// PendingItems returns the order's items not yet fulfilled.
func (r *InventoryRepository) PendingItems(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.Where("order_id = ? AND fulfilled = ?", orderID, false).Order("id ASC").Find(&items).Error
	return items, err
}

// MarkItemFulfilled flips the fulfilled flag and reports whether this call
// was the one that flipped it.
func (r *InventoryRepository) MarkItemFulfilled(itemID uint) (bool, error) {
	res := r.db.Model(&models.OrderItem{}).
		Where("id = ? AND fulfilled = ?", itemID, false).
		Update("fulfilled", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DecrementStock subtracts qty from a product's stock.
func (r *InventoryRepository) DecrementStock(productID uint, qty int) error {
	return r.db.Model(&models.Product{}).Where("id = ?", productID).
		Update("stock", gorm.Expr("stock - ?", qty)).Error
}

// ActivateAttendees moves the order's pending attendees to ACTIVE.
func (r *InventoryRepository) ActivateAttendees(orderID uint) (int64, error) {
	res := r.db.Model(&models.Attendee{}).
		Where("order_id = ? AND status = ?", orderID, models.AttendeeStatusPending).
		Update("status", models.AttendeeStatusActive)
	return res.RowsAffected, res.Error
}

// RecordAffiliateSale inserts the sale once per order and reports whether
// this call inserted it.
func (r *InventoryRepository) RecordAffiliateSale(sale *models.AffiliateSale) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(sale)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindProduct returns a product by id.
func (r *InventoryRepository) FindProduct(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
