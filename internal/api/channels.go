package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"

	"github.com/gin-gonic/gin"
)

// ChannelHandler manages a tenant's messaging channel integrations.
type ChannelHandler struct {
	registry *channels.Registry
	configs  store.ChannelConfigStore
	logger   *slog.Logger
}

func NewChannelHandler(registry *channels.Registry, configs store.ChannelConfigStore, logger *slog.Logger) *ChannelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelHandler{registry: registry, configs: configs, logger: logger}
}

// Supported lists the channel catalogue with per-channel config requirements.
func (h *ChannelHandler) Supported(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": channels.SupportedChannels()})
}

type registerChannelRequest struct {
	ChannelType string            `json:"channel_type" binding:"required"`
	Config      map[string]string `json:"config"`
}

// Register validates the credentials, installs the adapter and persists the
// config so it survives restarts.
func (h *ChannelHandler) Register(c *gin.Context) {
	var req registerChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Config == nil {
		req.Config = map[string]string{}
	}

	tenant := tenantID(c)
	if _, err := h.registry.Register(tenant, req.ChannelType, req.Config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	encoded, err := json.Marshal(req.Config)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	cfg := &models.ChannelConfig{
		TenantID:    tenant,
		ChannelType: req.ChannelType,
		Config:      string(encoded),
		IsActive:    true,
	}
	if err := h.configs.Upsert(c.Request.Context(), cfg); err != nil {
		h.logger.Error("persisting channel config failed", "tenant_id", tenant, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"channel_type": req.ChannelType,
		"status":       "registered",
	})
}

// List returns the tenant's registered channels. Credentials are not echoed
// back.
func (h *ChannelHandler) List(c *gin.Context) {
	cfgs, err := h.configs.ListByTenant(c.Request.Context(), tenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type channelSummary struct {
		ChannelType string `json:"channel_type"`
		IsActive    bool   `json:"is_active"`
		CreatedAt   string `json:"created_at"`
	}
	out := make([]channelSummary, 0, len(cfgs))
	for _, cfg := range cfgs {
		out = append(out, channelSummary{
			ChannelType: cfg.ChannelType,
			IsActive:    cfg.IsActive,
			CreatedAt:   cfg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"channels": out})
}

type testChannelRequest struct {
	ChannelType string `json:"channel_type" binding:"required"`
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

// Test probes the channel integration. With a recipient it delivers a test
// message; without one it only confirms the adapter resolves.
func (h *ChannelHandler) Test(c *gin.Context) {
	var req testChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant := tenantID(c)
	if _, err := h.registry.Resolve(tenant, req.ChannelType); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not configured"})
		return
	}

	if req.RecipientID == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "detail": "channel configured"})
		return
	}

	message := req.Message
	if message == "" {
		message = "Test message from your chatbot platform."
	}
	result := h.registry.SendThrough(c.Request.Context(), tenant, req.ChannelType, req.RecipientID, message, channels.SendOptions{})
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"success": result.Success, "error": result.Error})
}

type sendMessageRequest struct {
	ChannelType string `json:"channel_type" binding:"required"`
	RecipientID string `json:"recipient_id" binding:"required"`
	Text        string `json:"text" binding:"required"`
}

// Send delivers an ad-hoc outbound message through a registered channel.
func (h *ChannelHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.registry.SendThrough(c.Request.Context(), tenantID(c), req.ChannelType, req.RecipientID, req.Text, channels.SendOptions{})
	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": result.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "platform_message_id": result.PlatformMessageID})
}

// Delete removes a channel integration.
func (h *ChannelHandler) Delete(c *gin.Context) {
	channelType := c.Param("channelType")
	tenant := tenantID(c)

	h.registry.Unregister(tenant, channelType)
	if err := h.configs.Delete(c.Request.Context(), tenant, channelType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
