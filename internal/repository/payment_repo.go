package repository

import (
	"gorm.io/gorm"

	"paysync/internal/models"
)

// PaymentBindingRepository handles payment binding database operations.
type PaymentBindingRepository struct {
	db *gorm.DB
}

func NewPaymentBindingRepository(db *gorm.DB) *PaymentBindingRepository {
	return &PaymentBindingRepository{db: db}
}

// Create inserts a new binding. A second binding for the same order or
// gateway order violates a unique index.
func (r *PaymentBindingRepository) Create(binding *models.PaymentBinding) error {
	return r.db.Create(binding).Error
}

// FindByOrderID returns the binding for an internal order id.
func (r *PaymentBindingRepository) FindByOrderID(orderID uint) (*models.PaymentBinding, error) {
	return r.first(r.db, "order_id = ?", orderID)
}

// LockByOrderID is FindByOrderID with a row lock.
func (r *PaymentBindingRepository) LockByOrderID(orderID uint) (*models.PaymentBinding, error) {
	return r.first(forUpdate(r.db), "order_id = ?", orderID)
}

// LockByGatewayOrderID locks the binding for a gateway order id.
func (r *PaymentBindingRepository) LockByGatewayOrderID(gatewayOrderID string) (*models.PaymentBinding, error) {
	return r.first(forUpdate(r.db), "gateway_order_id = ?", gatewayOrderID)
}

// LockByGatewayPaymentID locks the binding a gateway payment was bound to.
func (r *PaymentBindingRepository) LockByGatewayPaymentID(paymentID string) (*models.PaymentBinding, error) {
	return r.first(forUpdate(r.db), "gateway_payment_id = ?", paymentID)
}

func (r *PaymentBindingRepository) first(db *gorm.DB, query string, arg interface{}) (*models.PaymentBinding, error) {
	var binding models.PaymentBinding
	if err := db.Where(query, arg).First(&binding).Error; err != nil {
		return nil, err
	}
	return &binding, nil
}

// Update updates a binding by id.
func (r *PaymentBindingRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.PaymentBinding{}).Where("id = ?", id).Updates(updates).Error
}

// BindPayment sets gateway_payment_id together with updates, but only while
// the column is still empty or already holds the same id. It reports false
// when a different payment id is bound.
func (r *PaymentBindingRepository) BindPayment(id uint, paymentID string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"gateway_payment_id": paymentID}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.Model(&models.PaymentBinding{}).
		Where("id = ? AND (gateway_payment_id IS NULL OR gateway_payment_id = ?)", id, paymentID).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Flag marks a binding for manual reconciliation.
func (r *PaymentBindingRepository) Flag(id uint, reason string, updates map[string]interface{}) error {
	values := map[string]interface{}{
		"needs_reconciliation":  true,
		"reconciliation_reason": reason,
		"last_error":            reason,
	}
	for k, v := range updates {
		values[k] = v
	}
	return r.db.Model(&models.PaymentBinding{}).Where("id = ?", id).Updates(values).Error
}

// ListNeedingReconciliation returns flagged bindings, newest first.
func (r *PaymentBindingRepository) ListNeedingReconciliation(limit int) ([]models.PaymentBinding, error) {
	if limit <= 0 {
		limit = 50
	}
	var bindings []models.PaymentBinding
	err := r.db.Where("needs_reconciliation = ?", true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&bindings).Error
	return bindings, err
}
