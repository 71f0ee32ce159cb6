package automation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"chatbot-backend/internal/config"
	"chatbot-backend/internal/models"

	"github.com/slack-go/slack"
)

func newTestExecutor(t *testing.T) (*Executor, *fakeSender, *memConversations, *memMessages, *memScheduled) {
	t.Helper()
	sender := &fakeSender{}
	convs := newMemConversations()
	msgs := &memMessages{}
	sched := &memScheduled{}
	exec := NewExecutor(sender, convs, msgs, sched, &config.Config{}, testLogger())
	return exec, sender, convs, msgs, sched
}

func TestWebhookActionPostsPayload(t *testing.T) {
	var gotBody map[string]any
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	exec, _, _, _, _ := newTestExecutor(t)
	action := Action{Type: ActionWebhook, Config: map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"X-Api-Key": "k1"},
	}}
	payload := map[string]any{"conversation_id": "c-1", "message_content": "hi"}

	result := exec.Execute(context.Background(), "t", action, payload)
	if !result.Success {
		t.Fatalf("webhook action failed: %s", result.Error)
	}
	if gotHeader != "k1" {
		t.Errorf("header = %q", gotHeader)
	}
	if gotBody["conversation_id"] != "c-1" {
		t.Errorf("posted body = %v", gotBody)
	}
}

func TestWebhookActionNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	exec, _, _, _, _ := newTestExecutor(t)
	result := exec.Execute(context.Background(), "t",
		Action{Type: ActionWebhook, Config: map[string]any{"url": server.URL}},
		map[string]any{})
	if result.Success {
		t.Fatal("expected failure for 502 response")
	}
	if result.Output["status_code"] != http.StatusBadGateway {
		t.Errorf("output = %v", result.Output)
	}
}

func TestWebhookActionRejectsBadMethod(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor(t)
	result := exec.Execute(context.Background(), "t",
		Action{Type: ActionWebhook, Config: map[string]any{"url": "http://x", "method": "DELETE"}},
		map[string]any{})
	if result.Success {
		t.Fatal("DELETE should not be allowed")
	}
}

func TestSlackAction(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor(t)

	var gotURL, gotText string
	exec.SetSlackPoster(func(_ context.Context, webhookURL string, msg *slack.WebhookMessage) error {
		gotURL = webhookURL
		gotText = msg.Text
		return nil
	})

	action := Action{Type: ActionSlack, Config: map[string]any{
		"webhook_url": "https://hooks.slack.com/services/T/B/X",
		"message":     "escalated: {message_content}",
	}}
	result := exec.Execute(context.Background(), "t", action, map[string]any{"message_content": "broken"})
	if !result.Success {
		t.Fatalf("slack action failed: %s", result.Error)
	}
	if gotURL != "https://hooks.slack.com/services/T/B/X" {
		t.Errorf("webhook url = %q", gotURL)
	}
	if gotText != "escalated: broken" {
		t.Errorf("message = %q, placeholders not resolved", gotText)
	}
}

func TestEmailAction(t *testing.T) {
	sender := &fakeSender{}
	convs := newMemConversations()
	cfg := &config.Config{SMTPHost: "mail.example.com", SMTPPort: "587", SMTPFrom: "bot@example.com"}
	exec := NewExecutor(sender, convs, &memMessages{}, &memScheduled{}, cfg, testLogger())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	exec.SetEmailSender(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	})

	action := Action{Type: ActionEmail, Config: map[string]any{
		"to":      "ops@example.com",
		"subject": "New conversation from {user_name}",
		"body":    "They said: {message_content}",
	}}
	result := exec.Execute(context.Background(), "t", action, map[string]any{
		"user_name": "Ada", "message_content": "hi",
	})
	if !result.Success {
		t.Fatalf("email action failed: %s", result.Error)
	}
	if gotAddr != "mail.example.com:587" || gotFrom != "bot@example.com" {
		t.Errorf("addr=%q from=%q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(string(gotMsg), "Subject: New conversation from Ada") {
		t.Errorf("subject not resolved: %s", gotMsg)
	}
}

func TestCustomResponseImmediate(t *testing.T) {
	exec, sender, _, msgs, _ := newTestExecutor(t)

	action := Action{Type: ActionCustomResponse, Config: map[string]any{
		"response": "Welcome {user_name}!",
	}}
	payload := map[string]any{
		"conversation_id": "c-1",
		"channel_type":    "telegram",
		"channel_user_id": "u-9",
		"user_name":       "Ada",
	}
	result := exec.Execute(context.Background(), "tenant-1", action, payload)
	if !result.Success {
		t.Fatalf("custom_response failed: %s", result.Error)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].Text != "Welcome Ada!" || sender.sent[0].RecipientID != "u-9" {
		t.Errorf("unexpected send: %+v", sender.sent[0])
	}
	if len(msgs.items) != 1 || msgs.items[0].SenderType != models.SenderBot {
		t.Errorf("bot message not persisted: %+v", msgs.items)
	}
}

func TestCustomResponseDelayedSchedules(t *testing.T) {
	exec, sender, _, _, sched := newTestExecutor(t)

	action := Action{Type: ActionCustomResponse, Config: map[string]any{
		"response":      "Still there?",
		"delay_seconds": float64(60),
	}}
	payload := map[string]any{
		"conversation_id": "c-1",
		"channel_type":    "web",
		"channel_user_id": "s-1",
	}
	result := exec.Execute(context.Background(), "tenant-1", action, payload)
	if !result.Success {
		t.Fatalf("delayed custom_response failed: %s", result.Error)
	}
	if len(sender.sent) != 0 {
		t.Error("delayed response should not send immediately")
	}
	if len(sched.items) != 1 {
		t.Fatalf("scheduled %d actions, want 1", len(sched.items))
	}
	sa := sched.items[0]
	if sa.Response != "Still there?" || sa.ConversationID != "c-1" {
		t.Errorf("unexpected scheduled action: %+v", sa)
	}
	if sa.RunAt.Before(time.Now().Add(50 * time.Second)) {
		t.Errorf("run_at too early: %v", sa.RunAt)
	}
}

func TestTagConversationUnions(t *testing.T) {
	exec, _, convs, _, _ := newTestExecutor(t)
	conv := &models.Conversation{
		TenantID: "t", ChannelType: "telegram", ChannelUserID: "u",
		Status: models.ConversationActive, Metadata: `{"tags": ["vip"]}`,
	}
	_ = convs.Create(context.Background(), conv)

	action := Action{Type: ActionTagConversation, Config: map[string]any{
		"tags": []any{"urgent", "vip"},
	}}
	result := exec.Execute(context.Background(), "t", action, map[string]any{"conversation_id": conv.ID})
	if !result.Success {
		t.Fatalf("tag_conversation failed: %s", result.Error)
	}

	updated, _ := convs.GetByID(context.Background(), "t", conv.ID)
	var meta map[string]any
	_ = json.Unmarshal([]byte(updated.Metadata), &meta)
	tags := meta["tags"].([]any)
	if len(tags) != 2 {
		t.Errorf("tags = %v, want set union of 2", tags)
	}
}

func TestAssignAgentAction(t *testing.T) {
	exec, _, convs, _, _ := newTestExecutor(t)
	conv := &models.Conversation{TenantID: "t", Status: models.ConversationActive}
	_ = convs.Create(context.Background(), conv)

	action := Action{Type: ActionAssignAgent, Config: map[string]any{"agent_id": "agent-7"}}
	result := exec.Execute(context.Background(), "t", action, map[string]any{"conversation_id": conv.ID})
	if !result.Success {
		t.Fatalf("assign_agent failed: %s", result.Error)
	}

	updated, _ := convs.GetByID(context.Background(), "t", conv.ID)
	if updated.Status != models.ConversationAssigned || updated.AssignedAgentID != "agent-7" {
		t.Errorf("conversation not assigned: %+v", updated)
	}
}

func TestCreateTicketAction(t *testing.T) {
	var gotTicket map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotTicket)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	exec, _, _, _, _ := newTestExecutor(t)
	action := Action{Type: ActionCreateTicket, Config: map[string]any{
		"subject":     "Issue from {user_name}",
		"priority":    "high",
		"webhook_url": server.URL,
	}}
	result := exec.Execute(context.Background(), "t", action, map[string]any{"user_name": "Ada"})
	if !result.Success {
		t.Fatalf("create_ticket failed: %s", result.Error)
	}
	ticketID, _ := result.Output["ticket_id"].(string)
	if !strings.HasPrefix(ticketID, "TKT-") {
		t.Errorf("ticket id = %q", ticketID)
	}
	if gotTicket["subject"] != "Issue from Ada" {
		t.Errorf("forwarded ticket = %v", gotTicket)
	}
}

func TestSendSMSAction(t *testing.T) {
	var gotForm map[string]string
	var gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotForm = map[string]string{
			"To":   r.PostFormValue("To"),
			"From": r.PostFormValue("From"),
			"Body": r.PostFormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid": "SM123"}`))
	}))
	defer server.Close()

	cfg := &config.Config{
		SMSAccountSID: "AC1",
		SMSAuthToken:  "tok",
		SMSFrom:       "+15550000001",
		SMSAPIBaseURL: server.URL,
	}
	exec := NewExecutor(&fakeSender{}, newMemConversations(), &memMessages{}, &memScheduled{}, cfg, testLogger())

	action := Action{Type: ActionSendSMS, Config: map[string]any{
		"to":      "+15550000002",
		"message": "Agent needed for {conversation_id}",
	}}
	result := exec.Execute(context.Background(), "t", action, map[string]any{"conversation_id": "c-1"})
	if !result.Success {
		t.Fatalf("send_sms failed: %s", result.Error)
	}
	if result.Output["sid"] != "SM123" {
		t.Errorf("sid = %v", result.Output["sid"])
	}
	if gotUser != "AC1" {
		t.Errorf("basic auth user = %q", gotUser)
	}
	if gotForm["To"] != "+15550000002" || gotForm["From"] != "+15550000001" || gotForm["Body"] != "Agent needed for c-1" {
		t.Errorf("form = %v", gotForm)
	}
}

func TestUnknownActionTypeFails(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor(t)
	result := exec.Execute(context.Background(), "t", Action{Type: "teleport"}, map[string]any{})
	if result.Success {
		t.Fatal("unknown action type should fail")
	}
}
