package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paysync/internal/models"
)

// RefundRepository records gateway refunds per binding.
type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// Record inserts the refund unless its refund id is already known and
// reports whether this call inserted it.
func (r *RefundRepository) Record(refund *models.Refund) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(refund)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByBindingID returns the refunds recorded for a binding, oldest first.
func (r *RefundRepository) ListByBindingID(bindingID uint) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.Where("binding_id = ?", bindingID).Order("id ASC").Find(&refunds).Error
	return refunds, err
}
