package store

import (
	"context"
	"errors"

	"chatbot-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelConfigStore persists per-tenant channel credentials so registrations
// survive restarts; the registry is rehydrated from it on boot.
type ChannelConfigStore interface {
	Upsert(ctx context.Context, cfg *models.ChannelConfig) error
	Get(ctx context.Context, tenantID, channelType string) (*models.ChannelConfig, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.ChannelConfig, error)
	ListAllActive(ctx context.Context) ([]models.ChannelConfig, error)
	Delete(ctx context.Context, tenantID, channelType string) error
}

type GormChannelConfigStore struct {
	db *gorm.DB
}

func NewChannelConfigStore(db *gorm.DB) *GormChannelConfigStore {
	return &GormChannelConfigStore{db: db}
}

func (s *GormChannelConfigStore) Upsert(ctx context.Context, cfg *models.ChannelConfig) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "channel_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"config", "is_active", "updated_at"}),
	}).Create(cfg).Error
}

func (s *GormChannelConfigStore) Get(ctx context.Context, tenantID, channelType string) (*models.ChannelConfig, error) {
	var cfg models.ChannelConfig
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_type = ?", tenantID, channelType).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *GormChannelConfigStore) ListByTenant(ctx context.Context, tenantID string) ([]models.ChannelConfig, error) {
	var cfgs []models.ChannelConfig
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&cfgs).Error
	return cfgs, err
}

func (s *GormChannelConfigStore) ListAllActive(ctx context.Context) ([]models.ChannelConfig, error) {
	var cfgs []models.ChannelConfig
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&cfgs).Error
	return cfgs, err
}

func (s *GormChannelConfigStore) Delete(ctx context.Context, tenantID, channelType string) error {
	return s.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_type = ?", tenantID, channelType).
		Delete(&models.ChannelConfig{}).Error
}

// OutboundLogStore records the registry's send audit trail.
type OutboundLogStore interface {
	Create(ctx context.Context, entry *models.OutboundMessageLog) error
}

type GormOutboundLogStore struct {
	db *gorm.DB
}

func NewOutboundLogStore(db *gorm.DB) *GormOutboundLogStore {
	return &GormOutboundLogStore{db: db}
}

func (s *GormOutboundLogStore) Create(ctx context.Context, entry *models.OutboundMessageLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
