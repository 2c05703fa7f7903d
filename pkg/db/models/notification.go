package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification records a purchase status change surfaced to the purchaser.
// Written by the notification dispatcher, never by the reconciler itself.
type Notification struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	PurchaseID uuid.UUID  `gorm:"column:purchase_id;type:uuid;not null"`
	Status     string     `gorm:"column:status;not null"`
	Title      string     `gorm:"type:text;not null"`
	Message    string     `gorm:"type:text;not null"`
	ReadAt     *time.Time `gorm:"column:read_at;type:timestamptz"`
	CreatedAt  time.Time  `gorm:"column:created_at;type:timestamptz;default:now()"`
}
