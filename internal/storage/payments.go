package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"botfleet/internal/models"
)

type PaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) Record(ctx context.Context, p *models.Payment) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to record payment %s: %w", p.TelegramChargeID, err)
	}
	return nil
}
