package webhook

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chatbot-backend/internal/bot"
	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/messaging"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memChannelConfigs struct {
	items map[string]*models.ChannelConfig
}

func key(tenantID, channelType string) string { return tenantID + ":" + channelType }

func (m *memChannelConfigs) Upsert(_ context.Context, cfg *models.ChannelConfig) error {
	if m.items == nil {
		m.items = map[string]*models.ChannelConfig{}
	}
	m.items[key(cfg.TenantID, cfg.ChannelType)] = cfg
	return nil
}

func (m *memChannelConfigs) Get(_ context.Context, tenantID, channelType string) (*models.ChannelConfig, error) {
	cfg, ok := m.items[key(tenantID, channelType)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cfg, nil
}

func (m *memChannelConfigs) ListByTenant(_ context.Context, tenantID string) ([]models.ChannelConfig, error) {
	return nil, nil
}

func (m *memChannelConfigs) ListAllActive(_ context.Context) ([]models.ChannelConfig, error) {
	return nil, nil
}

func (m *memChannelConfigs) Delete(_ context.Context, tenantID, channelType string) error {
	delete(m.items, key(tenantID, channelType))
	return nil
}

type memConversations struct {
	mu    sync.Mutex
	items map[string]*models.Conversation
}

func (m *memConversations) Create(_ context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if m.items == nil {
		m.items = map[string]*models.Conversation{}
	}
	cp := *conv
	m.items[conv.ID] = &cp
	return nil
}

func (m *memConversations) GetByID(_ context.Context, tenantID, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.items[id]
	if !ok || conv.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *memConversations) GetActive(_ context.Context, tenantID, channelType, channelUserID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.items {
		if conv.TenantID == tenantID && conv.ChannelType == channelType && conv.ChannelUserID == channelUserID &&
			conv.Status == models.ConversationActive {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memConversations) List(_ context.Context, tenantID, status string, limit, offset int) ([]models.Conversation, error) {
	return nil, nil
}

func (m *memConversations) Update(_ context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conv
	m.items[conv.ID] = &cp
	return nil
}

func (m *memConversations) Touch(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.items[id]; ok {
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
	return nil, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *memChannelConfigs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 1}}`))
	}))
	t.Cleanup(platform.Close)

	registry := channels.NewRegistry(testLogger())
	if _, err := registry.RegisterWithBaseURL("tenant-1", channels.TypeTelegram, map[string]string{"bot_token": "x"}, platform.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Register("tenant-1", channels.TypeMessenger, map[string]string{"access_token": "x", "verify_token": "vt"}); err != nil {
		t.Fatal(err)
	}

	orchestrator := messaging.NewOrchestrator(registry, &memConversations{}, &memMessages{}, bot.NewKeywordResponder(), nil, testLogger())

	configs := &memChannelConfigs{}
	_ = configs.Upsert(context.Background(), &models.ChannelConfig{
		TenantID:    "tenant-1",
		ChannelType: channels.TypeMessenger,
		Config:      `{"access_token": "x", "verify_token": "vt"}`,
		IsActive:    true,
	})

	h := NewHandler(orchestrator, configs, testLogger())
	r := gin.New()
	r.GET("/webhooks/:tenantID/:channelType", h.Verify)
	r.POST("/webhooks/:tenantID/:channelType", h.Receive)
	return r, configs
}

func TestVerifyEchoesChallenge(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/tenant-1/messenger?hub.mode=subscribe&hub.verify_token=vt&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "12345" {
		t.Errorf("body = %q, want challenge echo", w.Body.String())
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/tenant-1/messenger?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestVerifyUnknownChannel(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/tenant-1/whatsapp?hub.mode=subscribe&hub.verify_token=vt&hub.challenge=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestReceiveProcessesInbound(t *testing.T) {
	r, _ := setupRouter(t)

	payload := `{"update_id": 1, "message": {"message_id": 10, "from": {"id": 1, "first_name": "Ada"}, "chat": {"id": 1}, "date": 1700000000, "text": "hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/tenant-1/telegram", bytes.NewBufferString(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestReceiveRejectsMalformedPayload(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/tenant-1/telegram", bytes.NewBufferString(`{"update_id": 1}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestReceiveUnconfiguredChannel(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/tenant-2/telegram", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
