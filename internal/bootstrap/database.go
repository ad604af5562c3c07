package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"paysync/internal/models"
)

// Migrate ensures every table the service reads or writes exists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		// Checkout-owned entities the payment flow mutates
		&models.Order{},
		&models.OrderItem{},
		&models.Product{},
		&models.Attendee{},
		&models.AffiliateSale{},
		// Payment flow
		&models.PaymentBinding{},
		&models.Refund{},
		&models.IdempotencyMarker{},
	}
}
