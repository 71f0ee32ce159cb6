package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"chatbot-backend/internal/messaging"
	"chatbot-backend/internal/store"

	"github.com/gin-gonic/gin"
)

// ConversationHandler serves the agent-facing conversation endpoints.
type ConversationHandler struct {
	orchestrator  *messaging.Orchestrator
	conversations store.ConversationStore
	messages      store.MessageStore
	logger        *slog.Logger
}

func NewConversationHandler(
	orchestrator *messaging.Orchestrator,
	conversations store.ConversationStore,
	messages store.MessageStore,
	logger *slog.Logger,
) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{
		orchestrator:  orchestrator,
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

// List returns the tenant's conversations, optionally filtered by status.
func (h *ConversationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	convs, err := h.conversations.List(c.Request.Context(), tenantID(c), c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// Get returns one conversation.
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.conversations.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Messages returns a conversation's message history in order.
func (h *ConversationHandler) Messages(c *gin.Context) {
	tenant := tenantID(c)
	convID := c.Param("id")

	if _, err := h.conversations.GetByID(c.Request.Context(), tenant, convID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	msgs, err := h.messages.ListByConversation(c.Request.Context(), tenant, convID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type replyRequest struct {
	Text string `json:"text" binding:"required"`
}

// Reply sends a human agent message into the conversation's channel.
func (h *ConversationHandler) Reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.orchestrator.SendAgentReply(c.Request.Context(), tenantID(c), c.Param("id"), userID(c), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, messaging.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, messaging.ErrConversationClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "conversation is resolved"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Resolve closes a conversation.
func (h *ConversationHandler) Resolve(c *gin.Context) {
	conv, err := h.orchestrator.ResolveConversation(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, messaging.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Escalate flags a conversation for human attention.
func (h *ConversationHandler) Escalate(c *gin.Context) {
	conv, err := h.orchestrator.EscalateConversation(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, messaging.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

type assignRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

// Assign hands a conversation to an agent.
func (h *ConversationHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.orchestrator.AssignConversation(c.Request.Context(), tenantID(c), c.Param("id"), req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, messaging.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, messaging.ErrConversationClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "conversation is resolved"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, conv)
}
