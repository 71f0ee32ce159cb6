package channels

import (
	"context"
	"errors"
	"time"
)

// Channel type identifiers. The set is closed: the registry only constructs
// adapters for these five.
const (
	TypeTelegram  = "telegram"
	TypeWhatsApp  = "whatsapp"
	TypeMessenger = "messenger"
	TypeDiscord   = "discord"
	TypeWeb       = "web"
)

var (
	ErrChannelNotConfigured = errors.New("channel not configured for tenant")
	ErrUnsupportedChannel   = errors.New("unsupported channel type")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
)

const (
	sendTimeout  = 30 * time.Second
	probeTimeout = 10 * time.Second
)

// InboundMessage is the normalized form every adapter produces from its
// platform's webhook envelope.
type InboundMessage struct {
	ChannelType       string         `json:"channel_type"`
	UserID            string         `json:"user_id"`
	UserName          string         `json:"user_name"`
	Text              string         `json:"text"`
	MessageType       string         `json:"message_type"`
	PlatformMessageID string         `json:"platform_message_id"`
	Timestamp         time.Time      `json:"timestamp"`
	PlatformData      map[string]any `json:"platform_data,omitempty"`
}

// SendResult reports the outcome of an outbound delivery. Remote failures
// (missing credentials, timeouts, non-2xx responses) are carried in the
// result, not returned as Go errors, so callers can log-and-continue.
type SendResult struct {
	Success           bool   `json:"success"`
	PlatformMessageID string `json:"platform_message_id,omitempty"`
	RawResponse       string `json:"raw_response,omitempty"`
	Error             string `json:"error,omitempty"`
}

func failedSend(err error) SendResult {
	return SendResult{Success: false, Error: err.Error()}
}

// SendOptions carries platform-specific extras. Each adapter reads only the
// fields it understands and ignores the rest.
type SendOptions struct {
	ParseMode    string         // telegram: Markdown/HTML
	ReplyMarkup  map[string]any // telegram inline keyboards
	Template     string         // whatsapp template name
	TemplateLang string         // whatsapp template language code
	Embeds       []map[string]any
	QuickReplies []string // messenger quick replies
}

// UserInfo is the best-effort platform profile for a channel user.
type UserInfo struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"` // true when the platform has no profile endpoint
}

// Adapter translates between one messaging platform's protocol and the
// normalized message model. Implementations are stateless and safe for
// concurrent use once constructed.
type Adapter interface {
	Type() string
	SendMessage(ctx context.Context, recipientID, text string, opts SendOptions) SendResult
	ParseInbound(raw []byte) (*InboundMessage, error)
	ValidateWebhook(raw []byte) bool
	GetUserInfo(ctx context.Context, userID string) (*UserInfo, error)
}
