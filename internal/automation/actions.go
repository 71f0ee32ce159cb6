package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/config"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
)

// Action types.
const (
	ActionWebhook         = "webhook"
	ActionEmail           = "email"
	ActionSlack           = "slack"
	ActionCustomResponse  = "custom_response"
	ActionTagConversation = "tag_conversation"
	ActionAssignAgent     = "assign_agent"
	ActionCreateTicket    = "create_ticket"
	ActionSendSMS         = "send_sms"
)

const (
	webhookTimeout = 30 * time.Second
	slackTimeout   = 10 * time.Second
	smsTimeout     = 10 * time.Second
)

// Action is one step in a workflow's ordered action list.
type Action struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// ActionResult is the per-action outcome recorded in the execution log.
// Action failures are values; only the result carries them.
type ActionResult struct {
	Type    string         `json:"type"`
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func actionFailure(actionType string, err error) ActionResult {
	return ActionResult{Type: actionType, Success: false, Error: err.Error()}
}

// Sender delivers messages through the channel registry.
type Sender interface {
	SendThrough(ctx context.Context, tenantID, channelType, recipientID, text string, opts channels.SendOptions) channels.SendResult
}

// SlackPoster posts to a Slack incoming webhook. Swappable for tests.
type SlackPoster func(ctx context.Context, webhookURL string, msg *slack.WebhookMessage) error

// EmailSender submits a message to an SMTP relay. Swappable for tests.
type EmailSender func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Executor runs individual workflow actions.
type Executor struct {
	sender        Sender
	conversations store.ConversationStore
	messages      store.MessageStore
	scheduled     store.ScheduledActionStore

	cfg        *config.Config
	httpClient *http.Client
	postSlack  SlackPoster
	sendEmail  EmailSender
	logger     *slog.Logger
}

func NewExecutor(
	sender Sender,
	conversations store.ConversationStore,
	messages store.MessageStore,
	scheduled store.ScheduledActionStore,
	cfg *config.Config,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		sender:        sender,
		conversations: conversations,
		messages:      messages,
		scheduled:     scheduled,
		cfg:           cfg,
		httpClient:    &http.Client{},
		postSlack:     slack.PostWebhookContext,
		sendEmail:     smtp.SendMail,
		logger:        logger,
	}
}

// SetHTTPClient overrides the client used by webhook and SMS actions.
func (e *Executor) SetHTTPClient(c *http.Client) { e.httpClient = c }

// SetSlackPoster overrides the Slack webhook transport.
func (e *Executor) SetSlackPoster(fn SlackPoster) { e.postSlack = fn }

// SetEmailSender overrides the SMTP transport.
func (e *Executor) SetEmailSender(fn EmailSender) { e.sendEmail = fn }

// Execute runs one action with its placeholders already resolved. A panic in
// an action becomes a failed result; it never escapes to the engine loop.
func (e *Executor) Execute(ctx context.Context, tenantID string, action Action, payload map[string]any) (result ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ActionResult{Type: action.Type, Success: false, Error: fmt.Sprintf("action panic: %v", r)}
		}
	}()

	resolved, _ := ResolvePlaceholders(action.Config, payload).(map[string]any)
	if resolved == nil {
		resolved = map[string]any{}
	}

	switch action.Type {
	case ActionWebhook:
		return e.runWebhook(ctx, resolved, payload)
	case ActionEmail:
		return e.runEmail(resolved)
	case ActionSlack:
		return e.runSlack(ctx, resolved)
	case ActionCustomResponse:
		return e.runCustomResponse(ctx, tenantID, resolved, payload)
	case ActionTagConversation:
		return e.runTagConversation(ctx, tenantID, resolved, payload)
	case ActionAssignAgent:
		return e.runAssignAgent(ctx, tenantID, resolved, payload)
	case ActionCreateTicket:
		return e.runCreateTicket(ctx, resolved, payload)
	case ActionSendSMS:
		return e.runSendSMS(ctx, resolved)
	default:
		return actionFailure(action.Type, fmt.Errorf("unknown action type %q", action.Type))
	}
}

func cfgString(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func cfgFloat(config map[string]any, key string) float64 {
	if v, ok := toFloat(config[key]); ok {
		return v
	}
	return 0
}

func (e *Executor) runWebhook(ctx context.Context, config, payload map[string]any) ActionResult {
	rawURL := cfgString(config, "url")
	if rawURL == "" {
		return actionFailure(ActionWebhook, fmt.Errorf("webhook action requires url"))
	}

	method := strings.ToUpper(cfgString(config, "method"))
	switch method {
	case "":
		method = http.MethodPost
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return actionFailure(ActionWebhook, fmt.Errorf("unsupported webhook method %q", method))
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	var bodyReader io.Reader
	if method != http.MethodGet {
		body := payload
		if custom, ok := config["body"].(map[string]any); ok {
			body = custom
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return actionFailure(ActionWebhook, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return actionFailure(ActionWebhook, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, stringify(v))
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return actionFailure(ActionWebhook, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ActionResult{
			Type:    ActionWebhook,
			Success: false,
			Output:  map[string]any{"status_code": resp.StatusCode, "response": string(respBody)},
			Error:   fmt.Sprintf("webhook returned %s", resp.Status),
		}
	}
	return ActionResult{
		Type:    ActionWebhook,
		Success: true,
		Output:  map[string]any{"status_code": resp.StatusCode, "response": string(respBody)},
	}
}

func (e *Executor) runEmail(config map[string]any) ActionResult {
	to := cfgString(config, "to")
	subject := cfgString(config, "subject")
	body := cfgString(config, "body")
	if to == "" {
		return actionFailure(ActionEmail, fmt.Errorf("email action requires to"))
	}
	if e.cfg.SMTPHost == "" {
		return actionFailure(ActionEmail, fmt.Errorf("SMTP relay not configured"))
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.cfg.SMTPFrom, to, subject, body)

	var auth smtp.Auth
	if e.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPass, e.cfg.SMTPHost)
	}
	addr := e.cfg.SMTPHost + ":" + e.cfg.SMTPPort

	if err := e.sendEmail(addr, auth, e.cfg.SMTPFrom, []string{to}, []byte(msg)); err != nil {
		return actionFailure(ActionEmail, err)
	}
	return ActionResult{Type: ActionEmail, Success: true, Output: map[string]any{"to": to}}
}

func (e *Executor) runSlack(ctx context.Context, config map[string]any) ActionResult {
	webhookURL := cfgString(config, "webhook_url")
	message := cfgString(config, "message")
	if webhookURL == "" || message == "" {
		return actionFailure(ActionSlack, fmt.Errorf("slack action requires webhook_url and message"))
	}

	ctx, cancel := context.WithTimeout(ctx, slackTimeout)
	defer cancel()

	msg := &slack.WebhookMessage{
		Text:     message,
		Channel:  cfgString(config, "channel"),
		Username: cfgString(config, "username"),
	}
	if err := e.postSlack(ctx, webhookURL, msg); err != nil {
		return actionFailure(ActionSlack, err)
	}
	return ActionResult{Type: ActionSlack, Success: true}
}

func (e *Executor) runCustomResponse(ctx context.Context, tenantID string, config, payload map[string]any) ActionResult {
	response := cfgString(config, "response")
	if response == "" {
		return actionFailure(ActionCustomResponse, fmt.Errorf("custom_response action requires response"))
	}

	conversationID := stringify(payload["conversation_id"])
	channelType := stringify(payload["channel_type"])
	channelUserID := stringify(payload["channel_user_id"])
	if conversationID == "" || channelType == "" {
		return actionFailure(ActionCustomResponse, fmt.Errorf("payload missing conversation context"))
	}

	if delay := cfgFloat(config, "delay_seconds"); delay > 0 {
		sa := &models.ScheduledAction{
			TenantID:       tenantID,
			ConversationID: conversationID,
			ChannelType:    channelType,
			Response:       response,
			RunAt:          time.Now().Add(time.Duration(delay * float64(time.Second))),
			Status:         "pending",
		}
		if err := e.scheduled.Create(ctx, sa); err != nil {
			return actionFailure(ActionCustomResponse, err)
		}
		return ActionResult{
			Type:    ActionCustomResponse,
			Success: true,
			Output:  map[string]any{"scheduled": true, "run_at": sa.RunAt.UTC().Format(time.RFC3339)},
		}
	}

	sendResult := e.sender.SendThrough(ctx, tenantID, channelType, channelUserID, response, channels.SendOptions{})
	if !sendResult.Success {
		return ActionResult{Type: ActionCustomResponse, Success: false, Error: sendResult.Error}
	}

	msg := &models.Message{
		TenantID:          tenantID,
		ConversationID:    conversationID,
		SenderType:        models.SenderBot,
		Content:           response,
		MessageType:       "text",
		PlatformMessageID: sendResult.PlatformMessageID,
	}
	if err := e.messages.Create(ctx, msg); err != nil {
		e.logger.Warn("custom response sent but not persisted", "conversation_id", conversationID, "error", err)
	}
	return ActionResult{Type: ActionCustomResponse, Success: true, Output: map[string]any{"message_id": msg.ID}}
}

func (e *Executor) runTagConversation(ctx context.Context, tenantID string, config, payload map[string]any) ActionResult {
	conversationID := stringify(payload["conversation_id"])
	if conversationID == "" {
		return actionFailure(ActionTagConversation, fmt.Errorf("payload missing conversation_id"))
	}

	rawTags, _ := config["tags"].([]any)
	if len(rawTags) == 0 {
		return actionFailure(ActionTagConversation, fmt.Errorf("tag_conversation action requires tags"))
	}

	conv, err := e.conversations.GetByID(ctx, tenantID, conversationID)
	if err != nil {
		return actionFailure(ActionTagConversation, err)
	}

	meta := map[string]any{}
	if conv.Metadata != "" {
		_ = json.Unmarshal([]byte(conv.Metadata), &meta)
	}
	existing, _ := meta["tags"].([]any)

	seen := make(map[string]bool, len(existing))
	tags := make([]string, 0, len(existing)+len(rawTags))
	for _, t := range existing {
		s := stringify(t)
		if s != "" && !seen[s] {
			seen[s] = true
			tags = append(tags, s)
		}
	}
	for _, t := range rawTags {
		s := stringify(t)
		if s != "" && !seen[s] {
			seen[s] = true
			tags = append(tags, s)
		}
	}
	meta["tags"] = tags

	encoded, err := json.Marshal(meta)
	if err != nil {
		return actionFailure(ActionTagConversation, err)
	}
	conv.Metadata = string(encoded)
	if err := e.conversations.Update(ctx, conv); err != nil {
		return actionFailure(ActionTagConversation, err)
	}
	return ActionResult{Type: ActionTagConversation, Success: true, Output: map[string]any{"tags": tags}}
}

func (e *Executor) runAssignAgent(ctx context.Context, tenantID string, config, payload map[string]any) ActionResult {
	conversationID := stringify(payload["conversation_id"])
	agentID := cfgString(config, "agent_id")
	if conversationID == "" || agentID == "" {
		return actionFailure(ActionAssignAgent, fmt.Errorf("assign_agent requires conversation context and agent_id"))
	}

	conv, err := e.conversations.GetByID(ctx, tenantID, conversationID)
	if err != nil {
		return actionFailure(ActionAssignAgent, err)
	}
	conv.Status = models.ConversationAssigned
	conv.AssignedAgentID = agentID
	if err := e.conversations.Update(ctx, conv); err != nil {
		return actionFailure(ActionAssignAgent, err)
	}
	return ActionResult{Type: ActionAssignAgent, Success: true, Output: map[string]any{"agent_id": agentID}}
}

func (e *Executor) runCreateTicket(ctx context.Context, config, payload map[string]any) ActionResult {
	ticketID := "TKT-" + strings.ToUpper(uuid.NewString()[:8])
	ticket := map[string]any{
		"ticket_id": ticketID,
		"subject":   cfgString(config, "subject"),
		"priority":  cfgString(config, "priority"),
		"payload":   payload,
	}

	// Optional handoff to an external ticketing system.
	if hookURL := cfgString(config, "webhook_url"); hookURL != "" {
		hookCtx, cancel := context.WithTimeout(ctx, webhookTimeout)
		defer cancel()

		encoded, err := json.Marshal(ticket)
		if err != nil {
			return actionFailure(ActionCreateTicket, err)
		}
		req, err := http.NewRequestWithContext(hookCtx, http.MethodPost, hookURL, bytes.NewReader(encoded))
		if err != nil {
			return actionFailure(ActionCreateTicket, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return actionFailure(ActionCreateTicket, err)
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return actionFailure(ActionCreateTicket, fmt.Errorf("ticketing webhook returned %s", resp.Status))
		}
	}

	return ActionResult{Type: ActionCreateTicket, Success: true, Output: map[string]any{"ticket_id": ticketID}}
}

func (e *Executor) runSendSMS(ctx context.Context, config map[string]any) ActionResult {
	to := cfgString(config, "to")
	message := cfgString(config, "message")
	if to == "" || message == "" {
		return actionFailure(ActionSendSMS, fmt.Errorf("send_sms action requires to and message"))
	}
	if e.cfg.SMSAccountSID == "" || e.cfg.SMSAuthToken == "" {
		return actionFailure(ActionSendSMS, fmt.Errorf("SMS gateway not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, smsTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", e.cfg.SMSFrom)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", e.cfg.SMSAPIBaseURL, e.cfg.SMSAccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return actionFailure(ActionSendSMS, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(e.cfg.SMSAccountSID, e.cfg.SMSAuthToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return actionFailure(ActionSendSMS, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return actionFailure(ActionSendSMS, fmt.Errorf("SMS gateway returned %s: %s", resp.Status, string(respBody)))
	}

	var smsResp struct {
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(respBody, &smsResp)
	return ActionResult{Type: ActionSendSMS, Success: true, Output: map[string]any{"sid": smsResp.SID}}
}
