package channels

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// requiredKeys lists the mandatory credential fields checked at registration.
var requiredKeys = map[string][]string{
	TypeTelegram:  {"bot_token"},
	TypeWhatsApp:  {"access_token", "phone_number_id"},
	TypeMessenger: {"access_token"},
	TypeDiscord:   {"bot_token"},
	TypeWeb:       {},
}

// ChannelDescriptor documents one supported channel for the catalogue
// endpoint.
type ChannelDescriptor struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	RequiredKeys []string `json:"required_keys"`
	OptionalKeys []string `json:"optional_keys,omitempty"`
}

// SupportedChannels returns the catalogue of channel types and their config
// requirements.
func SupportedChannels() []ChannelDescriptor {
	return []ChannelDescriptor{
		{Type: TypeTelegram, Name: "Telegram", RequiredKeys: requiredKeys[TypeTelegram]},
		{Type: TypeWhatsApp, Name: "WhatsApp Business", RequiredKeys: requiredKeys[TypeWhatsApp], OptionalKeys: []string{"verify_token"}},
		{Type: TypeMessenger, Name: "Facebook Messenger", RequiredKeys: requiredKeys[TypeMessenger], OptionalKeys: []string{"verify_token"}},
		{Type: TypeDiscord, Name: "Discord", RequiredKeys: requiredKeys[TypeDiscord]},
		{Type: TypeWeb, Name: "Web Widget", RequiredKeys: requiredKeys[TypeWeb]},
	}
}

// OutboundRecord is handed to the registry's audit hook after every send.
type OutboundRecord struct {
	TenantID    string
	ChannelType string
	RecipientID string
	Content     string
	Success     bool
	RawResponse string
}

// OutboundLogger persists outbound audit records. Called fire-and-forget: it
// must never fail the send.
type OutboundLogger func(rec OutboundRecord)

// Registry holds the active adapter per (tenant, channel type). Reads vastly
// outnumber writes; entries are immutable once constructed, so concurrent
// resolution needs only the read lock.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter

	delivery    WidgetDelivery
	httpClient  *http.Client
	logger      *slog.Logger
	logOutbound OutboundLogger
}

type RegistryOption func(*Registry)

func WithWidgetDelivery(d WidgetDelivery) RegistryOption {
	return func(r *Registry) { r.delivery = d }
}

func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) { r.httpClient = c }
}

func WithOutboundLogger(fn OutboundLogger) RegistryOption {
	return func(r *Registry) { r.logOutbound = fn }
}

func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		adapters:   make(map[string]Adapter),
		httpClient: http.DefaultClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func registryKey(tenantID, channelType string) string {
	return tenantID + ":" + channelType
}

// Register validates the credential map for the channel type, constructs the
// adapter and installs it. Re-registering overwrites the previous adapter
// atomically; in-flight sends on the old adapter finish unaffected.
func (r *Registry) Register(tenantID, channelType string, credentials map[string]string) (Adapter, error) {
	return r.register(tenantID, channelType, credentials, "")
}

// RegisterWithBaseURL is Register with an API base override, used by
// integration tests pointing adapters at a local server.
func (r *Registry) RegisterWithBaseURL(tenantID, channelType string, credentials map[string]string, baseURL string) (Adapter, error) {
	return r.register(tenantID, channelType, credentials, baseURL)
}

func (r *Registry) register(tenantID, channelType string, credentials map[string]string, baseURL string) (Adapter, error) {
	required, ok := requiredKeys[channelType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channelType)
	}
	for _, key := range required {
		if credentials[key] == "" {
			return nil, fmt.Errorf("%s: missing required config field %q", channelType, key)
		}
	}

	cfg := Config{
		Credentials: credentials,
		APIBaseURL:  baseURL,
		HTTPClient:  r.httpClient,
		Logger:      r.logger.With("channel", channelType, "tenant_id", tenantID),
	}

	var adapter Adapter
	switch channelType {
	case TypeTelegram:
		adapter = NewTelegramAdapter(cfg)
	case TypeWhatsApp:
		adapter = NewWhatsAppAdapter(cfg)
	case TypeMessenger:
		adapter = NewMessengerAdapter(cfg)
	case TypeDiscord:
		adapter = NewDiscordAdapter(cfg)
	case TypeWeb:
		adapter = NewWebAdapter(cfg, r.delivery)
	}

	r.mu.Lock()
	r.adapters[registryKey(tenantID, channelType)] = adapter
	r.mu.Unlock()

	r.logger.Info("channel registered", "tenant_id", tenantID, "channel", channelType)
	return adapter, nil
}

// Resolve returns the tenant's adapter for the channel type.
// ErrChannelNotConfigured on miss is a normal outcome, not a server fault.
func (r *Registry) Resolve(tenantID, channelType string) (Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[registryKey(tenantID, channelType)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tenant=%s channel=%s", ErrChannelNotConfigured, tenantID, channelType)
	}
	return adapter, nil
}

// Unregister removes a tenant's channel. Missing entries are ignored.
func (r *Registry) Unregister(tenantID, channelType string) {
	r.mu.Lock()
	delete(r.adapters, registryKey(tenantID, channelType))
	r.mu.Unlock()
}

// SendThrough resolves the adapter and delivers, then writes the outbound
// audit record. Audit failure is logged and never fails the send.
func (r *Registry) SendThrough(ctx context.Context, tenantID, channelType, recipientID, text string, opts SendOptions) SendResult {
	adapter, err := r.Resolve(tenantID, channelType)
	if err != nil {
		return failedSend(err)
	}

	result := adapter.SendMessage(ctx, recipientID, text, opts)
	if !result.Success {
		r.logger.Warn("outbound send failed",
			"tenant_id", tenantID, "channel", channelType, "error", result.Error)
	}

	if r.logOutbound != nil {
		go r.logOutbound(OutboundRecord{
			TenantID:    tenantID,
			ChannelType: channelType,
			RecipientID: recipientID,
			Content:     text,
			Success:     result.Success,
			RawResponse: result.RawResponse,
		})
	}
	return result
}
