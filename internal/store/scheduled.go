package store

import (
	"context"
	"time"

	"chatbot-backend/internal/models"

	"gorm.io/gorm"
)

// ScheduledActionStore backs delayed automation responses.
type ScheduledActionStore interface {
	Create(ctx context.Context, sa *models.ScheduledAction) error
	// DuePending returns pending actions whose run time has passed.
	DuePending(ctx context.Context, now time.Time, limit int) ([]models.ScheduledAction, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

type GormScheduledActionStore struct {
	db *gorm.DB
}

func NewScheduledActionStore(db *gorm.DB) *GormScheduledActionStore {
	return &GormScheduledActionStore{db: db}
}

func (s *GormScheduledActionStore) Create(ctx context.Context, sa *models.ScheduledAction) error {
	return s.db.WithContext(ctx).Create(sa).Error
}

func (s *GormScheduledActionStore) DuePending(ctx context.Context, now time.Time, limit int) ([]models.ScheduledAction, error) {
	if limit <= 0 {
		limit = 100
	}
	var due []models.ScheduledAction
	err := s.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", "pending", now).
		Order("run_at ASC").
		Limit(limit).
		Find(&due).Error
	return due, err
}

func (s *GormScheduledActionStore) MarkSent(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.ScheduledAction{}).
		Where("id = ? AND status = ?", id, "pending").
		Updates(map[string]any{"status": "sent", "sent_at": &now}).Error
}

func (s *GormScheduledActionStore) MarkFailed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.ScheduledAction{}).
		Where("id = ? AND status = ?", id, "pending").
		Update("status", "failed").Error
}
