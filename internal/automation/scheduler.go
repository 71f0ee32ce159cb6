package automation

import (
	"context"
	"log/slog"
	"time"

	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"
)

const schedulerInterval = 5 * time.Second

// Scheduler delivers delayed custom responses. It polls for due scheduled
// actions and sends each through the channel registry, persisting the bot
// message on success.
type Scheduler struct {
	scheduled     store.ScheduledActionStore
	conversations store.ConversationStore
	messages      store.MessageStore
	sender        Sender
	interval      time.Duration
	logger        *slog.Logger
}

func NewScheduler(
	scheduled store.ScheduledActionStore,
	conversations store.ConversationStore,
	messages store.MessageStore,
	sender Sender,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduled:     scheduled,
		conversations: conversations,
		messages:      messages,
		sender:        sender,
		interval:      schedulerInterval,
		logger:        logger,
	}
}

// Run blocks until ctx is cancelled, dispatching due actions each tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduled response dispatcher started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduled response dispatcher stopped")
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	due, err := s.scheduled.DuePending(ctx, time.Now(), 100)
	if err != nil {
		s.logger.Error("loading due scheduled actions failed", "error", err)
		return
	}

	for i := range due {
		s.deliver(ctx, &due[i])
	}
}

func (s *Scheduler) deliver(ctx context.Context, sa *models.ScheduledAction) {
	conv, err := s.conversations.GetByID(ctx, sa.TenantID, sa.ConversationID)
	if err != nil {
		s.logger.Warn("scheduled action has no conversation", "scheduled_id", sa.ID, "error", err)
		_ = s.scheduled.MarkFailed(ctx, sa.ID)
		return
	}

	result := s.sender.SendThrough(ctx, sa.TenantID, sa.ChannelType, conv.ChannelUserID, sa.Response, channels.SendOptions{})
	if !result.Success {
		s.logger.Warn("scheduled response delivery failed", "scheduled_id", sa.ID, "error", result.Error)
		_ = s.scheduled.MarkFailed(ctx, sa.ID)
		return
	}

	msg := &models.Message{
		TenantID:          sa.TenantID,
		ConversationID:    sa.ConversationID,
		SenderType:        models.SenderBot,
		Content:           sa.Response,
		MessageType:       "text",
		PlatformMessageID: result.PlatformMessageID,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Warn("scheduled response sent but not persisted", "scheduled_id", sa.ID, "error", err)
	}
	if err := s.scheduled.MarkSent(ctx, sa.ID); err != nil {
		s.logger.Error("marking scheduled action sent failed", "scheduled_id", sa.ID, "error", err)
	}
}
