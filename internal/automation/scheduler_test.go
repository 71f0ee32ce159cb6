package automation

import (
	"context"
	"testing"
	"time"

	"chatbot-backend/internal/models"
)

func TestSchedulerDeliversDueActions(t *testing.T) {
	sender := &fakeSender{}
	convs := newMemConversations()
	msgs := &memMessages{}
	sched := &memScheduled{}

	conv := &models.Conversation{
		TenantID: "t", ChannelType: "telegram", ChannelUserID: "u-1",
		Status: models.ConversationActive,
	}
	_ = convs.Create(context.Background(), conv)

	_ = sched.Create(context.Background(), &models.ScheduledAction{
		TenantID:       "t",
		ConversationID: conv.ID,
		ChannelType:    "telegram",
		Response:       "checking in",
		RunAt:          time.Now().Add(-time.Minute),
	})
	// Not yet due; must stay pending.
	_ = sched.Create(context.Background(), &models.ScheduledAction{
		TenantID:       "t",
		ConversationID: conv.ID,
		ChannelType:    "telegram",
		Response:       "later",
		RunAt:          time.Now().Add(time.Hour),
	})

	s := NewScheduler(sched, convs, msgs, sender, testLogger())
	s.dispatchDue(context.Background())

	if len(sender.sent) != 1 || sender.sent[0].Text != "checking in" {
		t.Fatalf("sent = %+v", sender.sent)
	}
	if sched.items[0].Status != "sent" {
		t.Errorf("due action status = %q, want sent", sched.items[0].Status)
	}
	if sched.items[1].Status != "pending" {
		t.Errorf("future action status = %q, want pending", sched.items[1].Status)
	}
	if len(msgs.items) != 1 || msgs.items[0].SenderType != models.SenderBot {
		t.Errorf("bot message not persisted: %+v", msgs.items)
	}
}

func TestSchedulerMarksFailedDeliveries(t *testing.T) {
	sender := &fakeSender{fail: true}
	convs := newMemConversations()
	sched := &memScheduled{}

	conv := &models.Conversation{TenantID: "t", ChannelType: "web", ChannelUserID: "s-1"}
	_ = convs.Create(context.Background(), conv)
	_ = sched.Create(context.Background(), &models.ScheduledAction{
		TenantID:       "t",
		ConversationID: conv.ID,
		ChannelType:    "web",
		Response:       "x",
		RunAt:          time.Now().Add(-time.Second),
	})

	s := NewScheduler(sched, convs, &memMessages{}, sender, testLogger())
	s.dispatchDue(context.Background())

	if sched.items[0].Status != "failed" {
		t.Errorf("status = %q, want failed", sched.items[0].Status)
	}
}

func TestSchedulerMissingConversationFails(t *testing.T) {
	sched := &memScheduled{}
	_ = sched.Create(context.Background(), &models.ScheduledAction{
		TenantID:       "t",
		ConversationID: "gone",
		ChannelType:    "telegram",
		Response:       "x",
		RunAt:          time.Now().Add(-time.Second),
	})

	s := NewScheduler(sched, newMemConversations(), &memMessages{}, &fakeSender{}, testLogger())
	s.dispatchDue(context.Background())

	if sched.items[0].Status != "failed" {
		t.Errorf("status = %q, want failed", sched.items[0].Status)
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	s := NewScheduler(&memScheduled{}, newMemConversations(), &memMessages{}, &fakeSender{}, testLogger())
	s.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
