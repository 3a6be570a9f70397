package models

import (
	"time"
)

const (
	EventKindStart   = "start"
	EventKindClick   = "click"
	EventKindPayment = "payment"
)

// ReferralEvent is one row of the append-only attribution log. Rows are never
// updated; duplicates from webhook redelivery are expected and resolved at
// read time by deduplicating on SubjectExternalID.
//
// DeletedAt is a plain column, not gorm.DeletedAt: the soft-delete filter
// must stay an explicit predicate in queries, not an implicit ORM scope.
type ReferralEvent struct {
	ID                string `gorm:"primaryKey;size:36"`
	TenantID          uint   `gorm:"not null;index:idx_eventlog_inviter"`
	ActorExternalID   int64  `gorm:"not null"`
	SubjectExternalID *int64
	ReferralTag       string `gorm:"size:64"`
	InviterExternalID int64  `gorm:"index:idx_eventlog_inviter"`
	IsReferral        bool   `gorm:"not null;default:false"`
	Kind              string `gorm:"size:16;not null"`
	CreatedAt         time.Time
	DeletedAt         *time.Time `gorm:"index"`
}

func (e *ReferralEvent) Active() bool {
	return e.DeletedAt == nil
}
