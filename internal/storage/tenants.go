package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"botfleet/internal/models"
)

type TenantStore struct {
	db *gorm.DB
}

func NewTenantStore(db *gorm.DB) *TenantStore {
	return &TenantStore{db: db}
}

// ByWebhookSecret resolves the tenant owning an inbound webhook credential.
// Inactive tenants resolve to (nil, nil) the same as unknown ones: the
// gateway must not distinguish them to the upstream platform.
func (s *TenantStore) ByWebhookSecret(ctx context.Context, secret string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Where("webhook_secret = ? AND active = ?", secret, true).
		First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}
	return &tenant, nil
}
