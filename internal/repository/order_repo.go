package repository

import (
	"time"

	"gorm.io/gorm"

	"paysync/internal/models"
)

// OrderRepository handles order database operations.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// OrderGuard restricts an update to rows still in one of the listed states.
// Empty lists do not constrain.
type OrderGuard struct {
	Statuses        []models.OrderStatus
	PaymentStatuses []models.PaymentStatus
}

// Create inserts a new order.
func (r *OrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// FindByShortID returns an order by its public short id.
func (r *OrderRepository) FindByShortID(shortID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("short_id = ?", shortID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID returns an order by its internal id with a row lock held until
// the transaction ends.
func (r *OrderRepository) LockByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := forUpdate(r.db).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByShortID is FindByShortID with a row lock held until the transaction ends.
func (r *OrderRepository) LockByShortID(shortID string) (*models.Order, error) {
	var order models.Order
	if err := forUpdate(r.db).Where("short_id = ?", shortID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateFields updates the given columns unconditionally.
func (r *OrderRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// CompareAndUpdate applies updates only while the row still matches guard.
// It reports false when another writer moved the order first.
func (r *OrderRepository) CompareAndUpdate(id uint, guard OrderGuard, updates map[string]interface{}) (bool, error) {
	q := r.db.Model(&models.Order{}).Where("id = ?", id)
	if len(guard.Statuses) > 0 {
		q = q.Where("status IN ?", orderStatusStrings(guard.Statuses))
	}
	if len(guard.PaymentStatuses) > 0 {
		q = q.Where("payment_status IN ?", paymentStatusStrings(guard.PaymentStatuses))
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpireReservations moves unpaid RESERVED orders whose window ended before
// now to EXPIRED and returns how many were moved.
func (r *OrderRepository) ExpireReservations(now time.Time) (int64, error) {
	res := r.db.Model(&models.Order{}).
		Where("status = ? AND reserved_until < ?", models.OrderStatusReserved, now).
		Where("payment_status IN ?", paymentStatusStrings([]models.PaymentStatus{
			models.PaymentStatusAwaiting,
			models.PaymentStatusFailed,
		})).
		Update("status", models.OrderStatusExpired)
	return res.RowsAffected, res.Error
}

func orderStatusStrings(in []models.OrderStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func paymentStatusStrings(in []models.PaymentStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
