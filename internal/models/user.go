package models

import (
	"time"
)

const (
	RewardLocked = "locked"
	RewardOpen   = "open"
)

const (
	UnlockNone    = "none"
	UnlockInvites = "invites"
	UnlockPayment = "payment"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	TenantID     uint   `gorm:"not null;uniqueIndex:idx_tenant_telegram"`
	TelegramID   int64  `gorm:"not null;uniqueIndex:idx_tenant_telegram"`
	Username     string `gorm:"size:255"`
	FirstName    string `gorm:"size:255"`
	LanguageCode string `gorm:"size:8"`
	ReferralCode string `gorm:"size:32;index"`
	TotalInvited int    `gorm:"default:0"`
	RewardStatus string `gorm:"size:16;default:'locked'"`
	UnlockMethod string `gorm:"size:16;default:'none'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RewardState is the slice of the user row owned by the referral pipeline.
type RewardState struct {
	TotalInvited int
	RewardStatus string
	UnlockMethod string
}

func (u *User) Reward() RewardState {
	return RewardState{
		TotalInvited: u.TotalInvited,
		RewardStatus: u.RewardStatus,
		UnlockMethod: u.UnlockMethod,
	}
}

func (s RewardState) Open() bool {
	return s.RewardStatus == RewardOpen
}
