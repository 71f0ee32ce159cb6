package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramAdapter talks to the Telegram Bot API. Credentials: bot_token.
type TelegramAdapter struct {
	cfg Config
}

func NewTelegramAdapter(cfg Config) *TelegramAdapter {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = telegramAPIBase
	}
	return &TelegramAdapter{cfg: cfg}
}

func (a *TelegramAdapter) Type() string { return TypeTelegram }

// --- Wire structures ---

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64          `json:"message_id"`
	From      *telegramUser  `json:"from"`
	Chat      *telegramChat  `json:"chat"`
	Date      int64          `json:"date"`
	Text      string         `json:"text"`
	Photo     []any          `json:"photo,omitempty"`
	Document  map[string]any `json:"document,omitempty"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramSendRequest struct {
	ChatID      string         `json:"chat_id"`
	Text        string         `json:"text"`
	ParseMode   string         `json:"parse_mode,omitempty"`
	ReplyMarkup map[string]any `json:"reply_markup,omitempty"`
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (a *TelegramAdapter) SendMessage(ctx context.Context, recipientID, text string, opts SendOptions) SendResult {
	token := a.cfg.credential("bot_token")
	if token == "" {
		return failedSend(errors.New("telegram: bot_token not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.cfg.APIBaseURL, token)
	body := telegramSendRequest{
		ChatID:      recipientID,
		Text:        text,
		ParseMode:   opts.ParseMode,
		ReplyMarkup: opts.ReplyMarkup,
	}

	respBody, err := postJSON(ctx, a.cfg.httpClient(), url, nil, body)
	if err != nil {
		return SendResult{Success: false, RawResponse: string(respBody), Error: err.Error()}
	}

	var resp telegramResponse
	if err := json.Unmarshal(respBody, &resp); err != nil || !resp.OK {
		return SendResult{Success: false, RawResponse: string(respBody), Error: "telegram: send rejected"}
	}

	var sent telegramMessage
	_ = json.Unmarshal(resp.Result, &sent)

	return SendResult{
		Success:           true,
		PlatformMessageID: strconv.FormatInt(sent.MessageID, 10),
		RawResponse:       string(respBody),
	}
}

func (a *TelegramAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	var update telegramUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	msg := update.Message
	if msg == nil || msg.MessageID == 0 || msg.From == nil || msg.Chat == nil || msg.Date == 0 {
		return nil, fmt.Errorf("%w: missing required telegram message fields", ErrInvalidPayload)
	}

	name := msg.From.FirstName
	if msg.From.LastName != "" {
		name += " " + msg.From.LastName
	}

	msgType := "text"
	if msg.Text == "" {
		switch {
		case len(msg.Photo) > 0:
			msgType = "image"
		case msg.Document != nil:
			msgType = "document"
		}
	}

	// Identity is the sender, not the chat; chat_id rides along for group
	// chats where the two differ.
	return &InboundMessage{
		ChannelType:       TypeTelegram,
		UserID:            strconv.FormatInt(msg.From.ID, 10),
		UserName:          name,
		Text:              msg.Text,
		MessageType:       msgType,
		PlatformMessageID: strconv.FormatInt(msg.MessageID, 10),
		Timestamp:         time.Unix(msg.Date, 0).UTC(),
		PlatformData: map[string]any{
			"update_id": update.UpdateID,
			"username":  msg.From.Username,
			"chat_id":   msg.Chat.ID,
		},
	}, nil
}

func (a *TelegramAdapter) ValidateWebhook(raw []byte) bool {
	var update telegramUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return false
	}
	m := update.Message
	return m != nil && m.MessageID != 0 && m.From != nil && m.Chat != nil && m.Date != 0
}

func (a *TelegramAdapter) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	token := a.cfg.credential("bot_token")
	if token == "" {
		return nil, errors.New("telegram: bot_token not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/getChat?chat_id=%s", a.cfg.APIBaseURL, token, userID)
	var resp struct {
		OK     bool `json:"ok"`
		Result struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Username  string `json:"username"`
		} `json:"result"`
	}
	if err := getJSON(ctx, a.cfg.httpClient(), url, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, errors.New("telegram: getChat failed")
	}

	name := resp.Result.FirstName
	if resp.Result.LastName != "" {
		name += " " + resp.Result.LastName
	}
	return &UserInfo{
		UserID:   strconv.FormatInt(resp.Result.ID, 10),
		Name:     name,
		Username: resp.Result.Username,
	}, nil
}
