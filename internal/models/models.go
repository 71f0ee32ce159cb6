package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel types supported by the platform.
const (
	ChannelTelegram  = "telegram"
	ChannelWhatsApp  = "whatsapp"
	ChannelMessenger = "messenger"
	ChannelDiscord   = "discord"
	ChannelWeb       = "web"
)

// Conversation statuses.
const (
	ConversationActive    = "active"
	ConversationResolved  = "resolved"
	ConversationEscalated = "escalated"
	ConversationAssigned  = "assigned"
)

// Message sender types.
const (
	SenderUser  = "user"
	SenderBot   = "bot"
	SenderAgent = "agent"
)

// Execution statuses for automation runs.
const (
	ExecutionPending = "pending"
	ExecutionSuccess = "success"
	ExecutionFailed  = "failed"
)

// Tenant represents a customer account owning chatbots and channels.
type Tenant struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Plan      string    `gorm:"type:varchar(50);default:'free'" json:"plan"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Chatbot represents a bot configuration owned by a tenant.
type Chatbot struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID    string    `gorm:"index;type:varchar(36);not null" json:"tenant_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	Settings    string    `gorm:"type:text" json:"settings"` // JSON settings blob
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Chatbot) TableName() string { return "chatbots" }

func (c *Chatbot) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// User is an operator/agent account within a tenant.
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID     string    `gorm:"index;type:varchar(36);not null" json:"tenant_id"`
	Email        string    `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	Role         string    `gorm:"type:varchar(50);default:'agent'" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// ChannelConfig stores the credentials/config for one (tenant, channel) pair.
// Config is an opaque JSON object of string keys; the channel registry
// validates required keys per channel type at registration.
type ChannelConfig struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID    string    `gorm:"uniqueIndex:idx_tenant_channel;type:varchar(36);not null" json:"tenant_id"`
	ChannelType string    `gorm:"uniqueIndex:idx_tenant_channel;type:varchar(50);not null" json:"channel_type"`
	Config      string    `gorm:"type:text" json:"config"` // JSON credential map
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChannelConfig) TableName() string { return "channel_configs" }

func (c *ChannelConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Conversation is the ongoing exchange between one external end-user and one
// chatbot over one channel. At most one active conversation exists per
// (tenant, channel, channel_user_id); resolved conversations are never
// reopened, a later inbound message starts a fresh one.
type Conversation struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID        string     `gorm:"index:idx_conv_lookup;type:varchar(36);not null" json:"tenant_id"`
	ChatbotID       string     `gorm:"index;type:varchar(36)" json:"chatbot_id"`
	ChannelType     string     `gorm:"index:idx_conv_lookup;type:varchar(50);not null" json:"channel_type"`
	ChannelUserID   string     `gorm:"index:idx_conv_lookup;type:varchar(255);not null" json:"channel_user_id"`
	UserName        string     `gorm:"type:varchar(255)" json:"user_name"`
	UserEmail       string     `gorm:"type:varchar(255)" json:"user_email"`
	Status          string     `gorm:"type:varchar(50);default:'active';index" json:"status"`
	AssignedAgentID string     `gorm:"type:varchar(36)" json:"assigned_agent_id"`
	Metadata        string     `gorm:"type:text" json:"metadata"` // JSON: tags, platform user snapshot
	StartedAt       time.Time  `gorm:"autoCreateTime" json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Message belongs to exactly one conversation, ordered by CreatedAt.
type Message struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID          string    `gorm:"index;type:varchar(36);not null" json:"tenant_id"`
	ConversationID    string    `gorm:"index;type:varchar(36);not null" json:"conversation_id"`
	SenderType        string    `gorm:"type:varchar(20);not null" json:"sender_type"` // user, bot, agent
	SenderID          string    `gorm:"type:varchar(255)" json:"sender_id"`
	Content           string    `gorm:"type:text;not null" json:"content"`
	MessageType       string    `gorm:"type:varchar(50);default:'text'" json:"message_type"`
	PlatformMessageID string    `gorm:"type:varchar(255)" json:"platform_message_id"`
	Metadata          string    `gorm:"type:text" json:"metadata"` // JSON: channel type, raw platform payload
	CreatedAt         time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// AutomationWorkflow is a tenant-configured trigger + condition set + ordered
// action list.
type AutomationWorkflow struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string    `gorm:"index:idx_wf_trigger;type:varchar(36);not null" json:"tenant_id"`
	ChatbotID     string    `gorm:"type:varchar(36)" json:"chatbot_id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	TriggerType   string    `gorm:"index:idx_wf_trigger;type:varchar(50);not null" json:"trigger_type"`
	Conditions    string    `gorm:"type:text" json:"conditions"` // JSON condition triples
	Actions       string    `gorm:"type:text" json:"actions"`    // JSON ordered action list
	StopOnFailure bool      `gorm:"default:false" json:"stop_on_failure"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutomationWorkflow) TableName() string { return "automation_workflows" }

func (w *AutomationWorkflow) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// AutomationExecution is the append-only audit record of one workflow run.
// It is created pending and finalized exactly once.
type AutomationExecution struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string    `gorm:"index;type:varchar(36);not null" json:"tenant_id"`
	WorkflowID    string    `gorm:"index;type:varchar(36);not null" json:"workflow_id"`
	TriggerEvent  string    `gorm:"type:varchar(100);not null" json:"trigger_event"`
	Payload       string    `gorm:"type:text" json:"payload"`        // JSON input snapshot
	ActionResults string    `gorm:"type:text" json:"action_results"` // JSON ordered per-action results
	Status        string    `gorm:"type:varchar(50);not null" json:"status"`
	ExecutedAt    time.Time `gorm:"autoCreateTime" json:"executed_at"`
}

func (AutomationExecution) TableName() string { return "automation_executions" }

func (e *AutomationExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ScheduledAction is a delayed custom_response waiting to be delivered by the
// automation scheduler.
type ScheduledAction struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID       string     `gorm:"index;type:varchar(36);not null" json:"tenant_id"`
	ConversationID string     `gorm:"type:varchar(36);not null" json:"conversation_id"`
	ChannelType    string     `gorm:"type:varchar(50)" json:"channel_type"`
	Response       string     `gorm:"type:text;not null" json:"response"`
	RunAt          time.Time  `gorm:"not null;index" json:"run_at"`
	Status         string     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	SentAt         *time.Time `json:"sent_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ScheduledAction) TableName() string { return "scheduled_actions" }

func (s *ScheduledAction) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// OutboundMessageLog is the fire-and-forget audit entry for registry sends.
type OutboundMessageLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TenantID    string    `gorm:"index;type:varchar(36)" json:"tenant_id"`
	ChannelType string    `gorm:"type:varchar(50)" json:"channel_type"`
	RecipientID string    `gorm:"type:varchar(255)" json:"recipient_id"`
	Content     string    `gorm:"type:text" json:"content"`
	Success     bool      `json:"success"`
	RawResponse string    `gorm:"type:text" json:"raw_response"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (OutboundMessageLog) TableName() string { return "outbound_message_logs" }
