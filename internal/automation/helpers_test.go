package automation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memWorkflows struct {
	items []models.AutomationWorkflow
}

func (m *memWorkflows) Create(_ context.Context, wf *models.AutomationWorkflow) error {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	m.items = append(m.items, *wf)
	return nil
}

func (m *memWorkflows) GetByID(_ context.Context, tenantID, id string) (*models.AutomationWorkflow, error) {
	for i := range m.items {
		if m.items[i].TenantID == tenantID && m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memWorkflows) List(_ context.Context, tenantID string) ([]models.AutomationWorkflow, error) {
	var out []models.AutomationWorkflow
	for _, wf := range m.items {
		if wf.TenantID == tenantID {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (m *memWorkflows) ListActiveByTrigger(_ context.Context, tenantID, triggerType string) ([]models.AutomationWorkflow, error) {
	var out []models.AutomationWorkflow
	for _, wf := range m.items {
		if wf.TenantID == tenantID && wf.TriggerType == triggerType && wf.IsActive {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (m *memWorkflows) Update(_ context.Context, wf *models.AutomationWorkflow) error {
	for i := range m.items {
		if m.items[i].ID == wf.ID {
			m.items[i] = *wf
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memWorkflows) Delete(_ context.Context, tenantID, id string) error {
	for i := range m.items {
		if m.items[i].TenantID == tenantID && m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memWorkflows) SetActive(_ context.Context, tenantID, id string, active bool) error {
	for i := range m.items {
		if m.items[i].TenantID == tenantID && m.items[i].ID == id {
			m.items[i].IsActive = active
			return nil
		}
	}
	return store.ErrNotFound
}

type memExecutions struct {
	mu    sync.Mutex
	items []models.AutomationExecution
}

func (m *memExecutions) Create(_ context.Context, exec *models.AutomationExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	m.items = append(m.items, *exec)
	return nil
}

func (m *memExecutions) Finalize(_ context.Context, id, status, actionResults string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].Status == models.ExecutionPending {
			m.items[i].Status = status
			m.items[i].ActionResults = actionResults
		}
	}
	return nil
}

func (m *memExecutions) List(_ context.Context, tenantID, workflowID string, limit int) ([]models.AutomationExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AutomationExecution
	for _, e := range m.items {
		if e.TenantID == tenantID && (workflowID == "" || e.WorkflowID == workflowID) {
			out = append(out, e)
		}
	}
	return out, nil
}

type memConversations struct {
	items map[string]*models.Conversation
}

func newMemConversations() *memConversations {
	return &memConversations{items: map[string]*models.Conversation{}}
}

func (m *memConversations) Create(_ context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	cp := *conv
	m.items[conv.ID] = &cp
	return nil
}

func (m *memConversations) GetByID(_ context.Context, tenantID, id string) (*models.Conversation, error) {
	conv, ok := m.items[id]
	if !ok || conv.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *memConversations) GetActive(_ context.Context, tenantID, channelType, channelUserID string) (*models.Conversation, error) {
	for _, conv := range m.items {
		if conv.TenantID == tenantID && conv.ChannelType == channelType && conv.ChannelUserID == channelUserID &&
			(conv.Status == models.ConversationActive || conv.Status == models.ConversationAssigned) {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memConversations) List(_ context.Context, tenantID, status string, limit, offset int) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, conv := range m.items {
		if conv.TenantID == tenantID && (status == "" || conv.Status == status) {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (m *memConversations) Update(_ context.Context, conv *models.Conversation) error {
	if _, ok := m.items[conv.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *conv
	m.items[conv.ID] = &cp
	return nil
}

func (m *memConversations) Touch(_ context.Context, tenantID, id string) error {
	if conv, ok := m.items[id]; ok && conv.TenantID == tenantID {
		conv.UpdatedAt = time.Now()
	}
	return nil
}

type memMessages struct {
	mu    sync.Mutex
	items []models.Message
}

func (m *memMessages) Create(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	m.items = append(m.items, *msg)
	return nil
}

func (m *memMessages) ListByConversation(_ context.Context, tenantID, conversationID string, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.items {
		if msg.TenantID == tenantID && msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type memScheduled struct {
	items []models.ScheduledAction
}

func (m *memScheduled) Create(_ context.Context, sa *models.ScheduledAction) error {
	if sa.ID == "" {
		sa.ID = uuid.NewString()
	}
	if sa.Status == "" {
		sa.Status = "pending"
	}
	m.items = append(m.items, *sa)
	return nil
}

func (m *memScheduled) DuePending(_ context.Context, now time.Time, limit int) ([]models.ScheduledAction, error) {
	var out []models.ScheduledAction
	for _, sa := range m.items {
		if sa.Status == "pending" && !sa.RunAt.After(now) {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (m *memScheduled) MarkSent(_ context.Context, id string) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Status = "sent"
		}
	}
	return nil
}

func (m *memScheduled) MarkFailed(_ context.Context, id string) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Status = "failed"
		}
	}
	return nil
}

type sentMessage struct {
	TenantID    string
	ChannelType string
	RecipientID string
	Text        string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (f *fakeSender) SendThrough(_ context.Context, tenantID, channelType, recipientID, text string, _ channels.SendOptions) channels.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return channels.SendResult{Success: false, Error: "delivery refused"}
	}
	f.sent = append(f.sent, sentMessage{tenantID, channelType, recipientID, text})
	return channels.SendResult{Success: true, PlatformMessageID: "pm-" + uuid.NewString()[:8]}
}
