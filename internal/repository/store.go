package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store bundles the repositories the payment flow writes through, all bound
// to the same *gorm.DB so they can share one transaction.
type Store struct {
	db        *gorm.DB
	Orders    *OrderRepository
	Bindings  *PaymentBindingRepository
	Markers   *IdempotencyMarkerRepository
	Inventory *InventoryRepository
	Refunds   *RefundRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Orders:    NewOrderRepository(db),
		Bindings:  NewPaymentBindingRepository(db),
		Markers:   NewIdempotencyMarkerRepository(db),
		Inventory: NewInventoryRepository(db),
		Refunds:   NewRefundRepository(db),
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single database transaction.
// Calling it on a Store that is already transactional opens a savepoint, so
// a failing fn only rolls back its own writes.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
