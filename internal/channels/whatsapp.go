package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const whatsappAPIBase = "https://graph.facebook.com/v19.0"

// WhatsAppAdapter talks to the WhatsApp Cloud API. Credentials: access_token,
// phone_number_id.
type WhatsAppAdapter struct {
	cfg Config
}

func NewWhatsAppAdapter(cfg Config) *WhatsAppAdapter {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = whatsappAPIBase
	}
	return &WhatsAppAdapter{cfg: cfg}
}

func (a *WhatsAppAdapter) Type() string { return TypeWhatsApp }

// --- Wire structures ---

type waEnvelope struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Field string  `json:"field"`
	Value waValue `json:"value"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Contacts         []waContact `json:"contacts"`
	Messages         []waMessage `json:"messages"`
}

type waContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type waMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

type waSendRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             *waTextObj      `json:"text,omitempty"`
	Template         *waTemplateObj  `json:"template,omitempty"`
}

type waTextObj struct {
	Body string `json:"body"`
}

type waTemplateObj struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (a *WhatsAppAdapter) SendMessage(ctx context.Context, recipientID, text string, opts SendOptions) SendResult {
	token := a.cfg.credential("access_token")
	phoneID := a.cfg.credential("phone_number_id")
	if token == "" || phoneID == "" {
		return failedSend(errors.New("whatsapp: access_token and phone_number_id required"))
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	body := waSendRequest{
		MessagingProduct: "whatsapp",
		To:               recipientID,
	}
	if opts.Template != "" {
		body.Type = "template"
		tmpl := &waTemplateObj{Name: opts.Template}
		tmpl.Language.Code = opts.TemplateLang
		if tmpl.Language.Code == "" {
			tmpl.Language.Code = "en_US"
		}
		body.Template = tmpl
	} else {
		body.Type = "text"
		body.Text = &waTextObj{Body: text}
	}

	url := fmt.Sprintf("%s/%s/messages", a.cfg.APIBaseURL, phoneID)
	headers := map[string]string{"Authorization": "Bearer " + token}

	respBody, err := postJSON(ctx, a.cfg.httpClient(), url, headers, body)
	if err != nil {
		return SendResult{Success: false, RawResponse: string(respBody), Error: err.Error()}
	}

	var resp waSendResponse
	_ = json.Unmarshal(respBody, &resp)
	msgID := ""
	if len(resp.Messages) > 0 {
		msgID = resp.Messages[0].ID
	}

	return SendResult{Success: true, PlatformMessageID: msgID, RawResponse: string(respBody)}
}

func (a *WhatsAppAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	var env waEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 {
		return nil, fmt.Errorf("%w: empty whatsapp envelope", ErrInvalidPayload)
	}
	value := env.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, fmt.Errorf("%w: no messages in whatsapp payload", ErrInvalidPayload)
	}
	msg := value.Messages[0]

	name := ""
	if len(value.Contacts) > 0 {
		name = value.Contacts[0].Profile.Name
	}

	ts := time.Now().UTC()
	if unix, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
		ts = time.Unix(unix, 0).UTC()
	}

	text := ""
	if msg.Text != nil {
		text = msg.Text.Body
	}
	msgType := msg.Type
	if msgType == "" {
		msgType = "text"
	}

	return &InboundMessage{
		ChannelType:       TypeWhatsApp,
		UserID:            msg.From,
		UserName:          name,
		Text:              text,
		MessageType:       msgType,
		PlatformMessageID: msg.ID,
		Timestamp:         ts,
		PlatformData: map[string]any{
			"entry_id": env.Entry[0].ID,
		},
	}, nil
}

func (a *WhatsAppAdapter) ValidateWebhook(raw []byte) bool {
	var env waEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 {
		return false
	}
	return len(env.Entry[0].Changes[0].Value.Messages) > 0
}

// GetUserInfo returns a degraded phone-echo profile: the Cloud API exposes no
// user-profile endpoint outside of inbound contact blocks.
func (a *WhatsAppAdapter) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	return &UserInfo{UserID: userID, Name: userID, Degraded: true}, nil
}
