package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const messengerAPIBase = "https://graph.facebook.com/v19.0"

// MessengerAdapter talks to the Facebook Messenger Send API. Credentials:
// access_token (page token).
type MessengerAdapter struct {
	cfg Config
}

func NewMessengerAdapter(cfg Config) *MessengerAdapter {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = messengerAPIBase
	}
	return &MessengerAdapter{cfg: cfg}
}

func (a *MessengerAdapter) Type() string { return TypeMessenger }

// --- Wire structures ---

type fbEnvelope struct {
	Object string    `json:"object"`
	Entry  []fbEntry `json:"entry"`
}

type fbEntry struct {
	ID        string        `json:"id"`
	Time      int64         `json:"time"`
	Messaging []fbMessaging `json:"messaging"`
}

type fbMessaging struct {
	Sender    fbParty        `json:"sender"`
	Recipient fbParty        `json:"recipient"`
	Timestamp int64          `json:"timestamp"`
	Message   *fbMessageBody `json:"message"`
}

type fbParty struct {
	ID string `json:"id"`
}

type fbMessageBody struct {
	MID         string `json:"mid"`
	Text        string `json:"text"`
	Attachments []struct {
		Type string `json:"type"`
	} `json:"attachments"`
}

type fbSendRequest struct {
	Recipient fbParty       `json:"recipient"`
	Message   fbSendMessage `json:"message"`
}

type fbSendMessage struct {
	Text         string         `json:"text"`
	QuickReplies []fbQuickReply `json:"quick_replies,omitempty"`
}

type fbQuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type fbSendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

func (a *MessengerAdapter) SendMessage(ctx context.Context, recipientID, text string, opts SendOptions) SendResult {
	token := a.cfg.credential("access_token")
	if token == "" {
		return failedSend(errors.New("messenger: access_token not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	msg := fbSendMessage{Text: text}
	for _, qr := range opts.QuickReplies {
		msg.QuickReplies = append(msg.QuickReplies, fbQuickReply{
			ContentType: "text",
			Title:       qr,
			Payload:     qr,
		})
	}

	url := fmt.Sprintf("%s/me/messages?access_token=%s", a.cfg.APIBaseURL, token)
	body := fbSendRequest{Recipient: fbParty{ID: recipientID}, Message: msg}

	respBody, err := postJSON(ctx, a.cfg.httpClient(), url, nil, body)
	if err != nil {
		return SendResult{Success: false, RawResponse: string(respBody), Error: err.Error()}
	}

	var resp fbSendResponse
	_ = json.Unmarshal(respBody, &resp)

	return SendResult{Success: true, PlatformMessageID: resp.MessageID, RawResponse: string(respBody)}
}

func (a *MessengerAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	var env fbEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Messaging) == 0 {
		return nil, fmt.Errorf("%w: empty messenger envelope", ErrInvalidPayload)
	}
	event := env.Entry[0].Messaging[0]
	if event.Message == nil {
		return nil, fmt.Errorf("%w: messenger event has no message", ErrInvalidPayload)
	}

	msgType := "text"
	if event.Message.Text == "" && len(event.Message.Attachments) > 0 {
		msgType = event.Message.Attachments[0].Type
	}

	// Messenger timestamps are epoch milliseconds.
	ts := time.Now().UTC()
	if event.Timestamp > 0 {
		ts = time.UnixMilli(event.Timestamp).UTC()
	}

	return &InboundMessage{
		ChannelType:       TypeMessenger,
		UserID:            event.Sender.ID,
		Text:              event.Message.Text,
		MessageType:       msgType,
		PlatformMessageID: event.Message.MID,
		Timestamp:         ts,
		PlatformData: map[string]any{
			"page_id":      env.Entry[0].ID,
			"recipient_id": event.Recipient.ID,
		},
	}, nil
}

func (a *MessengerAdapter) ValidateWebhook(raw []byte) bool {
	var env fbEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Messaging) == 0 {
		return false
	}
	return env.Entry[0].Messaging[0].Message != nil
}

func (a *MessengerAdapter) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	token := a.cfg.credential("access_token")
	if token == "" {
		return nil, errors.New("messenger: access_token not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s?fields=first_name,last_name,profile_pic&access_token=%s", a.cfg.APIBaseURL, userID, token)
	var resp struct {
		ID         string `json:"id"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		ProfilePic string `json:"profile_pic"`
	}
	if err := getJSON(ctx, a.cfg.httpClient(), url, nil, &resp); err != nil {
		return nil, err
	}

	name := resp.FirstName
	if resp.LastName != "" {
		name += " " + resp.LastName
	}
	return &UserInfo{UserID: resp.ID, Name: name, AvatarURL: resp.ProfilePic}, nil
}
