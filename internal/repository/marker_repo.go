package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paysync/internal/models"
)

// IdempotencyMarkerRepository persists webhook idempotency markers.
type IdempotencyMarkerRepository struct {
	db *gorm.DB
}

func NewIdempotencyMarkerRepository(db *gorm.DB) *IdempotencyMarkerRepository {
	return &IdempotencyMarkerRepository{db: db}
}

// Find returns the marker stored under key, expired or not.
func (r *IdempotencyMarkerRepository) Find(key string) (*models.IdempotencyMarker, error) {
	var marker models.IdempotencyMarker
	if err := r.db.Where("`key` = ?", key).First(&marker).Error; err != nil {
		return nil, err
	}
	return &marker, nil
}

// Acquire inserts a marker for key unless a live one exists. An expired
// marker is replaced. It reports false when the key is already held, which
// includes losing an insert race to a concurrent transaction.
func (r *IdempotencyMarkerRepository) Acquire(key, eventType string, ttl time.Duration, now time.Time) (bool, error) {
	existing, err := r.Find(key)
	switch {
	case err == nil && existing.Live(now):
		return false, nil
	case err == nil:
		if err := r.db.Where("`key` = ? AND expires_at <= ?", key, now).Delete(&models.IdempotencyMarker{}).Error; err != nil {
			return false, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, err
	}

	marker := &models.IdempotencyMarker{
		Key:       key,
		EventType: eventType,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(marker)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PurgeExpired deletes markers that no longer suppress anything.
func (r *IdempotencyMarkerRepository) PurgeExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&models.IdempotencyMarker{})
	return res.RowsAffected, res.Error
}
