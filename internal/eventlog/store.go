// Package eventlog is the append-only attribution log, the single source of
// truth for referral counting. Appends are never rejected as duplicates:
// deduplication is a read-time concern handled by the counter.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"botfleet/internal/models"
)

// Store is the surface the pipeline depends on. SoftDelete, HardDelete and
// PurgeDeleted exist for administrative cleanup only and stay out of the hot
// path.
type Store interface {
	Append(ctx context.Context, ev *models.ReferralEvent) (string, error)
	ActiveReferrals(ctx context.Context, tenantID uint, inviterExternalID int64) ([]models.ReferralEvent, error)
	SoftDelete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
	PurgeDeleted(ctx context.Context, olderThan time.Time) (int64, error)
}

type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Append(ctx context.Context, ev *models.ReferralEvent) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return "", fmt.Errorf("failed to append referral event: %w", err)
	}
	return ev.ID, nil
}

// ActiveReferrals returns the rows the counter consumes: not soft-deleted and
// marked is_referral. The deleted_at predicate is spelled out on purpose; the
// model does not use the ORM's implicit soft-delete scope.
func (s *SQLStore) ActiveReferrals(ctx context.Context, tenantID uint, inviterExternalID int64) ([]models.ReferralEvent, error) {
	var events []models.ReferralEvent
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND inviter_external_id = ? AND is_referral = ? AND deleted_at IS NULL",
			tenantID, inviterExternalID, true).
		Order("created_at").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active referrals: %w", err)
	}
	return events, nil
}

func (s *SQLStore) SoftDelete(ctx context.Context, id string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.ReferralEvent{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", &now)
	if res.Error != nil {
		return fmt.Errorf("failed to soft-delete event %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SQLStore) HardDelete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ReferralEvent{})
	if res.Error != nil {
		return fmt.Errorf("failed to hard-delete event %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurgeDeleted removes soft-deleted rows older than the cutoff. Used by the
// cleanup sweeper only.
func (s *SQLStore) PurgeDeleted(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", olderThan).
		Delete(&models.ReferralEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge deleted events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
