package store

import (
	"context"

	"chatbot-backend/internal/models"

	"gorm.io/gorm"
)

// ExecutionStore is the append-only audit log of workflow runs. Records are
// created pending and finalized exactly once.
type ExecutionStore interface {
	Create(ctx context.Context, exec *models.AutomationExecution) error
	Finalize(ctx context.Context, id, status, actionResults string) error
	List(ctx context.Context, tenantID, workflowID string, limit int) ([]models.AutomationExecution, error)
}

type GormExecutionStore struct {
	db *gorm.DB
}

func NewExecutionStore(db *gorm.DB) *GormExecutionStore {
	return &GormExecutionStore{db: db}
}

func (s *GormExecutionStore) Create(ctx context.Context, exec *models.AutomationExecution) error {
	return s.db.WithContext(ctx).Create(exec).Error
}

func (s *GormExecutionStore) Finalize(ctx context.Context, id, status, actionResults string) error {
	return s.db.WithContext(ctx).Model(&models.AutomationExecution{}).
		Where("id = ? AND status = ?", id, models.ExecutionPending).
		Updates(map[string]any{"status": status, "action_results": actionResults}).Error
}

func (s *GormExecutionStore) List(ctx context.Context, tenantID, workflowID string, limit int) ([]models.AutomationExecution, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if workflowID != "" {
		q = q.Where("workflow_id = ?", workflowID)
	}
	var execs []models.AutomationExecution
	err := q.Order("executed_at DESC").Limit(limit).Find(&execs).Error
	return execs, err
}
