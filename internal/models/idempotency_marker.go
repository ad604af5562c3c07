package models

import "time"

// IdempotencyMarker maps to the `idempotency_markers` table. A row whose
// ExpiresAt is still in the future means the keyed webhook event has been
// applied.
type IdempotencyMarker struct {
	Key       string    `gorm:"column:key;primaryKey;size:191" json:"key"`
	EventType string    `gorm:"column:event_type;size:64" json:"event_type"`
	ExpiresAt time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (IdempotencyMarker) TableName() string {
	return "idempotency_markers"
}

// Live reports whether the marker still suppresses re-application at now.
func (m *IdempotencyMarker) Live(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}
