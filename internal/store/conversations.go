package store

import (
	"context"
	"errors"
	"time"

	"chatbot-backend/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// ConversationStore persists conversations. Lookups are always tenant-scoped.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Conversation, error)
	// GetActive finds the open conversation for a channel user, if any.
	// Resolved and escalated conversations are excluded: they never reopen.
	GetActive(ctx context.Context, tenantID, channelType, channelUserID string) (*models.Conversation, error)
	List(ctx context.Context, tenantID, status string, limit, offset int) ([]models.Conversation, error)
	Update(ctx context.Context, conv *models.Conversation) error
	Touch(ctx context.Context, tenantID, id string) error
}

type GormConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *gorm.DB) *GormConversationStore {
	return &GormConversationStore{db: db}
}

func (s *GormConversationStore) Create(ctx context.Context, conv *models.Conversation) error {
	return s.db.WithContext(ctx).Create(conv).Error
}

func (s *GormConversationStore) GetByID(ctx context.Context, tenantID, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *GormConversationStore) GetActive(ctx context.Context, tenantID, channelType, channelUserID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_type = ? AND channel_user_id = ? AND status IN ?",
			tenantID, channelType, channelUserID,
			[]string{models.ConversationActive, models.ConversationAssigned}).
		Order("started_at DESC").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *GormConversationStore) List(ctx context.Context, tenantID, status string, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var convs []models.Conversation
	err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&convs).Error
	return convs, err
}

func (s *GormConversationStore) Update(ctx context.Context, conv *models.Conversation) error {
	return s.db.WithContext(ctx).Save(conv).Error
}

func (s *GormConversationStore) Touch(ctx context.Context, tenantID, id string) error {
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("updated_at", time.Now()).Error
}
