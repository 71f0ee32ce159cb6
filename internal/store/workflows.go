package store

import (
	"context"
	"errors"

	"chatbot-backend/internal/models"

	"gorm.io/gorm"
)

// WorkflowStore persists automation workflows.
type WorkflowStore interface {
	Create(ctx context.Context, wf *models.AutomationWorkflow) error
	GetByID(ctx context.Context, tenantID, id string) (*models.AutomationWorkflow, error)
	List(ctx context.Context, tenantID string) ([]models.AutomationWorkflow, error)
	// ListActiveByTrigger returns the tenant's active workflows for one
	// trigger type, oldest first so execution order is stable.
	ListActiveByTrigger(ctx context.Context, tenantID, triggerType string) ([]models.AutomationWorkflow, error)
	Update(ctx context.Context, wf *models.AutomationWorkflow) error
	Delete(ctx context.Context, tenantID, id string) error
	SetActive(ctx context.Context, tenantID, id string, active bool) error
}

type GormWorkflowStore struct {
	db *gorm.DB
}

func NewWorkflowStore(db *gorm.DB) *GormWorkflowStore {
	return &GormWorkflowStore{db: db}
}

func (s *GormWorkflowStore) Create(ctx context.Context, wf *models.AutomationWorkflow) error {
	return s.db.WithContext(ctx).Create(wf).Error
}

func (s *GormWorkflowStore) GetByID(ctx context.Context, tenantID, id string) (*models.AutomationWorkflow, error) {
	var wf models.AutomationWorkflow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *GormWorkflowStore) List(ctx context.Context, tenantID string) ([]models.AutomationWorkflow, error) {
	var wfs []models.AutomationWorkflow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&wfs).Error
	return wfs, err
}

func (s *GormWorkflowStore) ListActiveByTrigger(ctx context.Context, tenantID, triggerType string) ([]models.AutomationWorkflow, error) {
	var wfs []models.AutomationWorkflow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND trigger_type = ? AND is_active = ?", tenantID, triggerType, true).
		Order("created_at ASC").
		Find(&wfs).Error
	return wfs, err
}

func (s *GormWorkflowStore) Update(ctx context.Context, wf *models.AutomationWorkflow) error {
	return s.db.WithContext(ctx).Save(wf).Error
}

func (s *GormWorkflowStore) Delete(ctx context.Context, tenantID, id string) error {
	return s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.AutomationWorkflow{}).Error
}

func (s *GormWorkflowStore) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	res := s.db.WithContext(ctx).Model(&models.AutomationWorkflow{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
