package models

import (
	"time"
)

type Tenant struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:255"`
	BotToken      string `gorm:"size:255;not null"`
	WebhookSecret string `gorm:"size:64;uniqueIndex;not null"`
	Language      string `gorm:"size:8;default:'en'"`
	Active        bool   `gorm:"default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
