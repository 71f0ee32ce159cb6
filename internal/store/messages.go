package store

import (
	"context"

	"chatbot-backend/internal/models"

	"gorm.io/gorm"
)

// MessageStore persists conversation messages.
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	ListByConversation(ctx context.Context, tenantID, conversationID string, limit int) ([]models.Message, error)
}

type GormMessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *GormMessageStore {
	return &GormMessageStore{db: db}
}

func (s *GormMessageStore) Create(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *GormMessageStore) ListByConversation(ctx context.Context, tenantID, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND conversation_id = ?", tenantID, conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
