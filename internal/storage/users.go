// Package storage holds the gorm-backed repositories the pipeline consumes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"botfleet/internal/models"
)

// Profile is the handful of fields the platform sends about an actor.
type Profile struct {
	Username     string
	FirstName    string
	LanguageCode string
}

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// GetOrCreate finds the actor within its tenant or creates it, returning
// whether this was first contact. A fresh user gets a referral code the same
// way established rows have one.
func (s *UserStore) GetOrCreate(ctx context.Context, tenantID uint, externalID int64, profile Profile) (*models.User, bool, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND telegram_id = ?", tenantID, externalID).
		First(&user).Error
	if err == nil {
		// Refresh mutable profile fields when the platform reports new ones.
		if profile.Username != "" && (user.Username != profile.Username || user.FirstName != profile.FirstName) {
			user.Username = profile.Username
			user.FirstName = profile.FirstName
			if saveErr := s.db.WithContext(ctx).Save(&user).Error; saveErr != nil {
				log.Printf("Failed to update profile for user %d: %v", externalID, saveErr)
			}
		}
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up user %d: %w", externalID, err)
	}

	user = models.User{
		TenantID:     tenantID,
		TelegramID:   externalID,
		Username:     profile.Username,
		FirstName:    profile.FirstName,
		LanguageCode: profile.LanguageCode,
		ReferralCode: fmt.Sprintf("ref_%d", externalID),
		RewardStatus: models.RewardLocked,
		UnlockMethod: models.UnlockNone,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// A concurrent task may have created the row between our read
		// and write; fall back to reading it.
		var existing models.User
		if err2 := s.db.WithContext(ctx).
			Where("tenant_id = ? AND telegram_id = ?", tenantID, externalID).
			First(&existing).Error; err2 == nil {
			return &existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create user %d: %w", externalID, err)
	}
	return &user, true, nil
}

// ByReferralCode resolves an inviter from a raw referral tag within a tenant.
// Returns (nil, nil) when the tag matches no user.
func (s *UserStore) ByReferralCode(ctx context.Context, tenantID uint, code string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND referral_code = ?", tenantID, code).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve referral code %q: %w", code, err)
	}
	return &user, nil
}

func (s *UserStore) RewardState(ctx context.Context, tenantID uint, externalID int64) (models.RewardState, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND telegram_id = ?", tenantID, externalID).
		First(&user).Error
	if err != nil {
		return models.RewardState{}, fmt.Errorf("failed to load reward state for %d: %w", externalID, err)
	}
	return user.Reward(), nil
}

// PersistRewardState writes the reward slice of the user row. The invite
// count is always written; the status columns are written only when opening,
// and only on rows not already open, so a racing recount can never revert an
// unlocked reward.
func (s *UserStore) PersistRewardState(ctx context.Context, tenantID uint, externalID int64, st models.RewardState) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("tenant_id = ? AND telegram_id = ?", tenantID, externalID).
			Update("total_invited", st.TotalInvited)
		if res.Error != nil {
			return fmt.Errorf("failed to persist invite count for %d: %w", externalID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if st.RewardStatus != models.RewardOpen {
			return nil
		}
		err := tx.Model(&models.User{}).
			Where("tenant_id = ? AND telegram_id = ? AND reward_status <> ?",
				tenantID, externalID, models.RewardOpen).
			Updates(map[string]interface{}{
				"reward_status": st.RewardStatus,
				"unlock_method": st.UnlockMethod,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to persist reward status for %d: %w", externalID, err)
		}
		return nil
	})
}
