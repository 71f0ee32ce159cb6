package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatbot-backend/internal/automation"
	"chatbot-backend/internal/bot"
	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"
)

var (
	ErrInvalidWebhook       = errors.New("webhook payload failed validation")
	ErrConversationClosed   = errors.New("conversation is closed")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Automations is the trigger entry point the orchestrator fires into.
type Automations interface {
	Trigger(ctx context.Context, triggerType, tenantID string, payload map[string]any) []automation.WorkflowResult
}

// InboundResult reports what the inbound pipeline produced.
type InboundResult struct {
	ConversationID  string `json:"conversation_id"`
	MessageID       string `json:"message_id"`
	NewConversation bool   `json:"new_conversation"`
	BotResponse     string `json:"bot_response,omitempty"`
}

// Orchestrator drives the inbound message pipeline: webhook bytes in,
// normalized conversation state and an optional bot reply out.
type Orchestrator struct {
	registry      *channels.Registry
	conversations store.ConversationStore
	messages      store.MessageStore
	responder     bot.Responder
	automations   Automations
	logger        *slog.Logger

	// one lock per conversation key; concurrent webhooks for the same
	// user serialize, different users proceed in parallel. Entries are
	// reference counted and evicted when the last holder releases, so
	// the map does not grow with every user ever seen.
	locksMu sync.Mutex
	locks   map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func NewOrchestrator(
	registry *channels.Registry,
	conversations store.ConversationStore,
	messages store.MessageStore,
	responder bot.Responder,
	automations Automations,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		responder:     responder,
		automations:   automations,
		logger:        logger,
		locks:         map[string]*convLock{},
	}
}

func (o *Orchestrator) lockConversation(key string) func() {
	o.locksMu.Lock()
	l := o.locks[key]
	if l == nil {
		l = &convLock{}
		o.locks[key] = l
	}
	l.refs++
	o.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, key)
		}
		o.locksMu.Unlock()
	}
}

// ProcessInbound runs the full inbound flow for one webhook delivery.
func (o *Orchestrator) ProcessInbound(ctx context.Context, tenantID, channelType string, raw []byte) (*InboundResult, error) {
	adapter, err := o.registry.Resolve(tenantID, channelType)
	if err != nil {
		return nil, err
	}

	if !adapter.ValidateWebhook(raw) {
		return nil, ErrInvalidWebhook
	}

	inbound, err := adapter.ParseInbound(raw)
	if err != nil {
		return nil, err
	}

	unlock := o.lockConversation(tenantID + ":" + channelType + ":" + inbound.UserID)
	defer unlock()

	conv, created, err := o.getOrCreateConversation(ctx, tenantID, inbound)
	if err != nil {
		return nil, fmt.Errorf("conversation lookup: %w", err)
	}

	if created {
		o.fireTrigger(ctx, automation.TriggerNewConversation, tenantID, conv, nil)
	}

	rawMeta, _ := json.Marshal(map[string]any{
		"channel_type":  channelType,
		"platform_data": inbound.PlatformData,
	})
	userMsg := &models.Message{
		TenantID:          tenantID,
		ConversationID:    conv.ID,
		SenderType:        models.SenderUser,
		SenderID:          inbound.UserID,
		Content:           inbound.Text,
		MessageType:       inbound.MessageType,
		PlatformMessageID: inbound.PlatformMessageID,
		Metadata:          string(rawMeta),
	}
	if err := o.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persisting inbound message: %w", err)
	}

	o.fireTrigger(ctx, automation.TriggerMessageReceived, tenantID, conv, userMsg)

	result := &InboundResult{
		ConversationID:  conv.ID,
		MessageID:       userMsg.ID,
		NewConversation: created,
	}

	response := o.responder.Respond(tenantID, conv.ID, inbound.Text)
	if response == "" {
		_ = o.conversations.Touch(ctx, tenantID, conv.ID)
		return result, nil
	}

	sendResult := o.registry.SendThrough(ctx, tenantID, channelType, inbound.UserID, response, channels.SendOptions{})
	if sendResult.Success {
		botMsg := &models.Message{
			TenantID:          tenantID,
			ConversationID:    conv.ID,
			SenderType:        models.SenderBot,
			Content:           response,
			MessageType:       "text",
			PlatformMessageID: sendResult.PlatformMessageID,
		}
		if err := o.messages.Create(ctx, botMsg); err != nil {
			o.logger.Warn("bot reply sent but not persisted", "conversation_id", conv.ID, "error", err)
		}
		result.BotResponse = response
	} else {
		o.logger.Warn("bot reply delivery failed",
			"conversation_id", conv.ID, "channel", channelType, "error", sendResult.Error)
	}

	_ = o.conversations.Touch(ctx, tenantID, conv.ID)
	return result, nil
}

// getOrCreateConversation returns the user's open conversation or starts a
// fresh one. Closed conversations never reopen.
func (o *Orchestrator) getOrCreateConversation(ctx context.Context, tenantID string, inbound *channels.InboundMessage) (*models.Conversation, bool, error) {
	conv, err := o.conversations.GetActive(ctx, tenantID, inbound.ChannelType, inbound.UserID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	userEmail := ""
	if v, ok := inbound.PlatformData["user_email"].(string); ok {
		userEmail = v
	}

	conv = &models.Conversation{
		TenantID:      tenantID,
		ChannelType:   inbound.ChannelType,
		ChannelUserID: inbound.UserID,
		UserName:      inbound.UserName,
		UserEmail:     userEmail,
		Status:        models.ConversationActive,
	}
	if err := o.conversations.Create(ctx, conv); err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// fireTrigger runs automations synchronously; failures are logged, never
// propagated into the message pipeline. The payload carries nested
// conversation/message snapshots for dot-path conditions plus flat keys
// backing the placeholder table.
func (o *Orchestrator) fireTrigger(ctx context.Context, triggerType, tenantID string, conv *models.Conversation, msg *models.Message) {
	if o.automations == nil {
		return
	}
	payload := map[string]any{
		"tenant_id":       tenantID,
		"conversation_id": conv.ID,
		"chatbot_id":      conv.ChatbotID,
		"channel_type":    conv.ChannelType,
		"channel_user_id": conv.ChannelUserID,
		"user_name":       conv.UserName,
		"user_email":      conv.UserEmail,
		"status":          conv.Status,
		"conversation":    conversationSnapshot(conv),
	}
	if msg != nil {
		payload["message_content"] = msg.Content
		payload["message_id"] = msg.ID
		payload["message"] = messageSnapshot(msg)
	}
	results := o.automations.Trigger(ctx, triggerType, tenantID, payload)
	for _, r := range results {
		if r.Status == models.ExecutionFailed {
			o.logger.Warn("automation workflow failed",
				"trigger", triggerType, "workflow_id", r.WorkflowID, "conversation_id", conv.ID)
		}
	}
}

func conversationSnapshot(conv *models.Conversation) map[string]any {
	return map[string]any{
		"id":                conv.ID,
		"tenant_id":         conv.TenantID,
		"chatbot_id":        conv.ChatbotID,
		"channel_type":      conv.ChannelType,
		"channel_user_id":   conv.ChannelUserID,
		"user_name":         conv.UserName,
		"user_email":        conv.UserEmail,
		"status":            conv.Status,
		"assigned_agent_id": conv.AssignedAgentID,
		"metadata":          decodeMetadata(conv.Metadata),
		"started_at":        conv.StartedAt.UTC().Format(time.RFC3339),
		"updated_at":        conv.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func messageSnapshot(msg *models.Message) map[string]any {
	return map[string]any{
		"id":                  msg.ID,
		"conversation_id":     msg.ConversationID,
		"sender_type":         msg.SenderType,
		"sender_id":           msg.SenderID,
		"content":             msg.Content,
		"message_type":        msg.MessageType,
		"platform_message_id": msg.PlatformMessageID,
		"metadata":            decodeMetadata(msg.Metadata),
		"created_at":          msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeMetadata(raw string) map[string]any {
	m := map[string]any{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &m)
	}
	return m
}

// SendAgentReply delivers a human agent's message into an open conversation.
func (o *Orchestrator) SendAgentReply(ctx context.Context, tenantID, conversationID, agentID, text string) (*models.Message, error) {
	conv, err := o.conversations.GetByID(ctx, tenantID, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.Status == models.ConversationResolved {
		return nil, ErrConversationClosed
	}

	unlock := o.lockConversation(tenantID + ":" + conv.ChannelType + ":" + conv.ChannelUserID)
	defer unlock()

	sendResult := o.registry.SendThrough(ctx, tenantID, conv.ChannelType, conv.ChannelUserID, text, channels.SendOptions{})
	if !sendResult.Success {
		return nil, fmt.Errorf("agent reply delivery failed: %s", sendResult.Error)
	}

	msg := &models.Message{
		TenantID:          tenantID,
		ConversationID:    conv.ID,
		SenderType:        models.SenderAgent,
		SenderID:          agentID,
		Content:           text,
		MessageType:       "text",
		PlatformMessageID: sendResult.PlatformMessageID,
	}
	if err := o.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persisting agent reply: %w", err)
	}
	_ = o.conversations.Touch(ctx, tenantID, conv.ID)
	return msg, nil
}

// ResolveConversation closes a conversation. Idempotent on already-resolved.
func (o *Orchestrator) ResolveConversation(ctx context.Context, tenantID, conversationID string) (*models.Conversation, error) {
	return o.closeConversation(ctx, tenantID, conversationID, models.ConversationResolved, automation.TriggerConversationEnded)
}

// EscalateConversation flags a conversation for human attention.
func (o *Orchestrator) EscalateConversation(ctx context.Context, tenantID, conversationID string) (*models.Conversation, error) {
	return o.closeConversation(ctx, tenantID, conversationID, models.ConversationEscalated, automation.TriggerEscalationRequested)
}

func (o *Orchestrator) closeConversation(ctx context.Context, tenantID, conversationID, status, trigger string) (*models.Conversation, error) {
	conv, err := o.conversations.GetByID(ctx, tenantID, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.Status == status {
		return conv, nil
	}

	conv.Status = status
	if status == models.ConversationResolved {
		now := time.Now()
		conv.EndedAt = &now
	}
	if err := o.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}

	o.fireTrigger(ctx, trigger, tenantID, conv, nil)
	return conv, nil
}

// AssignConversation hands a conversation to a specific agent.
func (o *Orchestrator) AssignConversation(ctx context.Context, tenantID, conversationID, agentID string) (*models.Conversation, error) {
	conv, err := o.conversations.GetByID(ctx, tenantID, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.Status == models.ConversationResolved {
		return nil, ErrConversationClosed
	}

	conv.Status = models.ConversationAssigned
	conv.AssignedAgentID = agentID
	if err := o.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}
