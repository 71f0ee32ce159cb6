package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func telegramUpdateJSON() []byte {
	return []byte(`{
		"update_id": 99,
		"message": {
			"message_id": 42,
			"from": {"id": 7, "first_name": "Ada", "last_name": "Lovelace", "username": "ada"},
			"chat": {"id": 1234},
			"date": 1700000000,
			"text": "hello"
		}
	}`)
}

func TestTelegramParseInbound(t *testing.T) {
	adapter := NewTelegramAdapter(Config{Credentials: map[string]string{"bot_token": "t"}})

	msg, err := adapter.ParseInbound(telegramUpdateJSON())
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if msg.ChannelType != TypeTelegram {
		t.Errorf("channel type = %q, want telegram", msg.ChannelType)
	}
	if msg.UserID != "7" {
		t.Errorf("user id = %q, want sender id 7", msg.UserID)
	}
	// Group chats have chat.id != from.id; the chat is preserved alongside.
	if msg.PlatformData["chat_id"] != int64(1234) {
		t.Errorf("chat_id = %v, want 1234", msg.PlatformData["chat_id"])
	}
	if msg.UserName != "Ada Lovelace" {
		t.Errorf("user name = %q", msg.UserName)
	}
	if msg.Text != "hello" {
		t.Errorf("text = %q", msg.Text)
	}
	if msg.PlatformMessageID != "42" {
		t.Errorf("platform message id = %q", msg.PlatformMessageID)
	}
}

func TestTelegramParseInboundRejectsMalformed(t *testing.T) {
	adapter := NewTelegramAdapter(Config{})

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"no message", `{"update_id": 1}`},
		{"missing from", `{"message": {"message_id": 1, "chat": {"id": 2}, "date": 3}}`},
		{"missing chat", `{"message": {"message_id": 1, "from": {"id": 2}, "date": 3}}`},
		{"missing date", `{"message": {"message_id": 1, "from": {"id": 2}, "chat": {"id": 3}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := adapter.ParseInbound([]byte(tc.raw)); err == nil {
				t.Error("expected parse error")
			}
			if adapter.ValidateWebhook([]byte(tc.raw)) {
				t.Error("ValidateWebhook accepted malformed payload")
			}
		})
	}
}

func TestTelegramSendMessage(t *testing.T) {
	var gotPath string
	var gotBody telegramSendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 77}}`))
	}))
	defer server.Close()

	adapter := NewTelegramAdapter(Config{
		Credentials: map[string]string{"bot_token": "secret"},
		APIBaseURL:  server.URL,
	})

	result := adapter.SendMessage(context.Background(), "1234", "hi there", SendOptions{ParseMode: "Markdown"})
	if !result.Success {
		t.Fatalf("send failed: %s", result.Error)
	}
	if result.PlatformMessageID != "77" {
		t.Errorf("platform message id = %q, want 77", result.PlatformMessageID)
	}
	if gotPath != "/botsecret/sendMessage" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotBody.ChatID != "1234" || gotBody.Text != "hi there" || gotBody.ParseMode != "Markdown" {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestTelegramSendFailuresAreResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok": false, "description": "Unauthorized"}`))
	}))
	defer server.Close()

	adapter := NewTelegramAdapter(Config{
		Credentials: map[string]string{"bot_token": "bad"},
		APIBaseURL:  server.URL,
	})
	result := adapter.SendMessage(context.Background(), "1", "x", SendOptions{})
	if result.Success {
		t.Fatal("expected failure result for 401")
	}
	if result.Error == "" {
		t.Error("failure result should carry an error string")
	}

	// Missing credentials also fail as a result, not a panic or Go error.
	bare := NewTelegramAdapter(Config{})
	if r := bare.SendMessage(context.Background(), "1", "x", SendOptions{}); r.Success {
		t.Error("expected failure without bot_token")
	}
}
