package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const discordAPIBase = "https://discord.com/api/v10"

// DiscordAdapter talks to the Discord REST API. Credentials: bot_token.
// Inbound events arrive as gateway-style MESSAGE_CREATE dispatches relayed
// over the webhook endpoint.
type DiscordAdapter struct {
	cfg Config
}

func NewDiscordAdapter(cfg Config) *DiscordAdapter {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = discordAPIBase
	}
	return &DiscordAdapter{cfg: cfg}
}

func (a *DiscordAdapter) Type() string { return TypeDiscord }

// --- Wire structures ---

type discordDispatch struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

type discordMessage struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channel_id"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	Author    discordUser `json:"author"`
	Attachments []struct {
		ContentType string `json:"content_type"`
	} `json:"attachments"`
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	Avatar        string `json:"avatar"`
	Discriminator string `json:"discriminator"`
	Bot           bool   `json:"bot"`
}

type discordSendRequest struct {
	Content string           `json:"content"`
	Embeds  []map[string]any `json:"embeds,omitempty"`
}

// SendMessage posts to the recipient channel. recipientID is a Discord
// channel ID (DM or guild channel).
func (a *DiscordAdapter) SendMessage(ctx context.Context, recipientID, text string, opts SendOptions) SendResult {
	token := a.cfg.credential("bot_token")
	if token == "" {
		return failedSend(errors.New("discord: bot_token not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/channels/%s/messages", a.cfg.APIBaseURL, recipientID)
	headers := map[string]string{"Authorization": "Bot " + token}
	body := discordSendRequest{Content: text, Embeds: opts.Embeds}

	respBody, err := postJSON(ctx, a.cfg.httpClient(), url, headers, body)
	if err != nil {
		return SendResult{Success: false, RawResponse: string(respBody), Error: err.Error()}
	}

	var sent discordMessage
	_ = json.Unmarshal(respBody, &sent)

	return SendResult{Success: true, PlatformMessageID: sent.ID, RawResponse: string(respBody)}
}

func (a *DiscordAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	var dispatch discordDispatch
	if err := json.Unmarshal(raw, &dispatch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dispatch.T != "MESSAGE_CREATE" || len(dispatch.D) == 0 {
		return nil, fmt.Errorf("%w: not a MESSAGE_CREATE dispatch", ErrInvalidPayload)
	}

	var msg discordMessage
	if err := json.Unmarshal(dispatch.D, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if msg.ID == "" || msg.ChannelID == "" {
		return nil, fmt.Errorf("%w: missing discord message fields", ErrInvalidPayload)
	}

	ts := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
		ts = parsed.UTC()
	}

	name := msg.Author.GlobalName
	if name == "" {
		name = msg.Author.Username
	}

	msgType := "text"
	if msg.Content == "" && len(msg.Attachments) > 0 {
		msgType = "attachment"
	}

	return &InboundMessage{
		ChannelType:       TypeDiscord,
		UserID:            msg.ChannelID,
		UserName:          name,
		Text:              msg.Content,
		MessageType:       msgType,
		PlatformMessageID: msg.ID,
		Timestamp:         ts,
		PlatformData: map[string]any{
			"author_id": msg.Author.ID,
			"is_bot":    msg.Author.Bot,
		},
	}, nil
}

func (a *DiscordAdapter) ValidateWebhook(raw []byte) bool {
	var dispatch discordDispatch
	if err := json.Unmarshal(raw, &dispatch); err != nil {
		return false
	}
	return dispatch.T == "MESSAGE_CREATE" && len(dispatch.D) > 0
}

func (a *DiscordAdapter) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	token := a.cfg.credential("bot_token")
	if token == "" {
		return nil, errors.New("discord: bot_token not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/users/%s", a.cfg.APIBaseURL, userID)
	headers := map[string]string{"Authorization": "Bot " + token}

	var user discordUser
	if err := getJSON(ctx, a.cfg.httpClient(), url, headers, &user); err != nil {
		return nil, err
	}

	name := user.GlobalName
	if name == "" {
		name = user.Username
	}
	avatar := ""
	if user.Avatar != "" {
		avatar = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", user.ID, user.Avatar)
	}
	return &UserInfo{UserID: user.ID, Name: name, Username: user.Username, AvatarURL: avatar}, nil
}
