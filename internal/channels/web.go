package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WidgetDelivery is the push side of the web widget channel. The websocket
// hub implements it; the adapter stays transport-agnostic.
type WidgetDelivery interface {
	Push(sessionID string, payload []byte) error
}

// WebAdapter serves the embeddable chat widget. Inbound messages arrive as
// widget JSON posts, outbound replies are pushed over the tenant's websocket
// hub. No platform credentials are required.
type WebAdapter struct {
	cfg      Config
	delivery WidgetDelivery
}

func NewWebAdapter(cfg Config, delivery WidgetDelivery) *WebAdapter {
	return &WebAdapter{cfg: cfg, delivery: delivery}
}

func (a *WebAdapter) Type() string { return TypeWeb }

// --- Wire structures ---

type webInbound struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	Timestamp int64  `json:"timestamp"`
}

type webOutbound struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func (a *WebAdapter) SendMessage(ctx context.Context, recipientID, text string, opts SendOptions) SendResult {
	if a.delivery == nil {
		return failedSend(errors.New("web: widget delivery not attached"))
	}

	msgID := uuid.NewString()
	payload, err := json.Marshal(webOutbound{
		Type:      "message",
		MessageID: msgID,
		Text:      text,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return failedSend(err)
	}

	if err := a.delivery.Push(recipientID, payload); err != nil {
		return SendResult{Success: false, Error: err.Error()}
	}
	return SendResult{Success: true, PlatformMessageID: msgID}
}

func (a *WebAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	var in webInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if in.SessionID == "" || in.Text == "" {
		return nil, fmt.Errorf("%w: widget message needs session_id and text", ErrInvalidPayload)
	}

	ts := time.Now().UTC()
	if in.Timestamp > 0 {
		ts = time.Unix(in.Timestamp, 0).UTC()
	}

	return &InboundMessage{
		ChannelType:       TypeWeb,
		UserID:            in.SessionID,
		UserName:          in.UserName,
		Text:              in.Text,
		MessageType:       "text",
		PlatformMessageID: uuid.NewString(),
		Timestamp:         ts,
		PlatformData: map[string]any{
			"user_email": in.UserEmail,
		},
	}, nil
}

func (a *WebAdapter) ValidateWebhook(raw []byte) bool {
	var in webInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return false
	}
	return in.SessionID != "" && in.Text != ""
}

func (a *WebAdapter) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	// Widget sessions are anonymous; identity comes from the inbound payload.
	return &UserInfo{UserID: userID, Name: "Web Visitor", Degraded: true}, nil
}
