package models

import (
	"time"
)

type Payment struct {
	ID               uint   `gorm:"primaryKey"`
	TenantID         uint   `gorm:"not null;index"`
	UserID           uint   `gorm:"not null;index"`
	Amount           int64  `gorm:"not null"` // smallest currency unit
	Currency         string `gorm:"size:8"`
	InvoicePayload   string `gorm:"size:255"`
	TelegramChargeID string `gorm:"size:255"`
	Status           string `gorm:"default:'succeeded'"`
	CreatedAt        time.Time
}
