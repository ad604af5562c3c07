// Package fulfillment applies the inventory, attendee and affiliate side
// effects of a paid order.
package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/repository"
)

// Finalizer decrements stock and activates attendees for a completed order.
// Each item is fulfilled at most once, so repeated calls are harmless.
type Finalizer struct {
	logger *zap.Logger
}

func NewFinalizer(logger *zap.Logger) *Finalizer {
	return &Finalizer{logger: logger}
}

func (f *Finalizer) CompleteOrder(_ context.Context, tx *repository.Store, order *models.Order) error {
	items, err := tx.Inventory.PendingItems(order.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	fulfilled := 0
	for _, item := range items {
		ok, err := tx.Inventory.MarkItemFulfilled(item.ID)
		if err != nil {
			return fmt.Errorf("mark item %d fulfilled: %w", item.ID, err)
		}
		if !ok {
			continue
		}
		if err := tx.Inventory.DecrementStock(item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("decrement stock of product %d: %w", item.ProductID, err)
		}
		fulfilled++
	}

	activated, err := tx.Inventory.ActivateAttendees(order.ID)
	if err != nil {
		return fmt.Errorf("activate attendees: %w", err)
	}

	f.logger.Info("order finalized",
		zap.String("order", order.ShortID),
		zap.Int("items", fulfilled),
		zap.Int64("attendees", activated))
	return nil
}

// AffiliateLedger records one affiliate sale per completed order.
type AffiliateLedger struct {
	logger *zap.Logger
}

func NewAffiliateLedger(logger *zap.Logger) *AffiliateLedger {
	return &AffiliateLedger{logger: logger}
}

func (l *AffiliateLedger) RecordSale(_ context.Context, tx *repository.Store, order *models.Order, amountMinor int64) error {
	if order.AffiliateCode == "" {
		return nil
	}
	inserted, err := tx.Inventory.RecordAffiliateSale(&models.AffiliateSale{
		OrderID:       order.ID,
		AffiliateCode: order.AffiliateCode,
		AmountMinor:   amountMinor,
		Currency:      order.Currency,
	})
	if err != nil {
		return fmt.Errorf("record affiliate sale: %w", err)
	}
	if inserted {
		l.logger.Info("affiliate sale recorded",
			zap.String("order", order.ShortID),
			zap.String("affiliate", order.AffiliateCode),
			zap.Int64("amount", amountMinor))
	}
	return nil
}
