package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/messaging"
	"chatbot-backend/internal/store"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20 // 1MB

// Handler serves the unauthenticated platform webhook endpoints.
type Handler struct {
	orchestrator   *messaging.Orchestrator
	channelConfigs store.ChannelConfigStore
	logger         *slog.Logger
}

func NewHandler(orchestrator *messaging.Orchestrator, channelConfigs store.ChannelConfigStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orchestrator:   orchestrator,
		channelConfigs: channelConfigs,
		logger:         logger,
	}
}

// Verify answers the Meta-style subscription handshake: echo hub.challenge
// when hub.verify_token matches the tenant's configured token.
func (h *Handler) Verify(c *gin.Context) {
	tenantID := c.Param("tenantID")
	channelType := c.Param("channelType")

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification request"})
		return
	}

	cfg, err := h.channelConfigs.Get(c.Request.Context(), tenantID, channelType)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not configured"})
		return
	}

	var credentials map[string]string
	if err := json.Unmarshal([]byte(cfg.Config), &credentials); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "channel config unreadable"})
		return
	}

	if credentials["verify_token"] != token {
		c.JSON(http.StatusForbidden, gin.H{"error": "verification token mismatch"})
		return
	}

	c.String(http.StatusOK, challenge)
}

// Receive runs one inbound webhook delivery through the message pipeline.
func (h *Handler) Receive(c *gin.Context) {
	tenantID := c.Param("tenantID")
	channelType := c.Param("channelType")

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	result, err := h.orchestrator.ProcessInbound(c.Request.Context(), tenantID, channelType, raw)
	if err != nil {
		switch {
		case errors.Is(err, channels.ErrChannelNotConfigured):
			c.JSON(http.StatusNotFound, gin.H{"error": "channel not configured"})
		case errors.Is(err, messaging.ErrInvalidWebhook), errors.Is(err, channels.ErrInvalidPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("webhook processing failed",
				"tenant_id", tenantID, "channel", channelType, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "result": result})
}
