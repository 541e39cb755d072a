package service

import (
	"time"

	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/mapper"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/resolver"
)

// SnapshotFromRemote normalizes one entry of the conversation listing. sub
// is the subscriber looked up by the caller and may be nil when the listing
// did not include it; attendant is the already resolved manager or nil.
func SnapshotFromRemote(conv model.RemoteConversation, sub *model.Subscriber, attendant *model.Manager) model.ConversationSnapshot {
	subscriber := pickSubscriber(conv, sub)

	closed := conv.Status == model.RemoteStateClosed
	return model.ConversationSnapshot{
		Account:         conv.Account,
		ExternalID:      conv.ID.String(),
		SubscriberID:    subscriberID(conv, subscriber),
		LeadName:        resolver.ResolveName(subscriber),
		LeadPhone:       subscriber.Phone,
		Department:      conv.Department,
		Attendant:       attendant,
		RemoteUpdatedAt: conv.UpdatedAt.Time,
		StartedAt:       conv.CreatedAt.Ptr(),
		FirstReplyAt:    conv.FirstReplyAt.Ptr(),
		LastMessageAt:   conv.LastMessageAt.Ptr(),
		ClosedAt:        conv.ClosedAt.Ptr(),
		ReopenedAt:      conv.ReopenedAt.Ptr(),
		Signals: model.StatusSignals{
			Assigned: attendant != nil || conv.ManagerID != "",
			Replied:  !conv.FirstReplyAt.IsZero(),
			Closed:   closed,
			Reopened: !closed && !conv.ReopenedAt.IsZero(),
		},
	}
}

// SnapshotFromWebhook normalizes a decoded delivery. The event type adds
// the signals the conversation body may not carry yet.
func SnapshotFromWebhook(wh *mapper.Webhook, attendant *model.Manager, webhookLogID int64) model.ConversationSnapshot {
	conv := wh.Conversation
	sub := wh.Subscriber
	snap := SnapshotFromRemote(conv, &sub, attendant)
	snap.WebhookLogID = &webhookLogID

	switch wh.Type {
	case domain.EventConversationClosed:
		snap.Signals.Closed = true
		snap.Signals.Reopened = false
	case domain.EventConversationReopened:
		snap.Signals.Closed = false
		snap.Signals.Reopened = true
		if snap.ReopenedAt == nil {
			snap.ReopenedAt = timePtr(snap.RemoteUpdatedAt)
		}
	case domain.EventConversationAssigned:
		snap.Signals.Assigned = true
	case domain.EventMessageSent:
		snap.Signals.Replied = true
	}

	if msg := wh.Message; msg != nil && !msg.CreatedAt.IsZero() {
		at := msg.CreatedAt.Time
		snap.LastMessageAt = latestTime(snap.LastMessageAt, at)
		if msg.Outbound() {
			snap.Signals.Replied = true
			if snap.FirstReplyAt == nil {
				snap.FirstReplyAt = timePtr(at)
			}
		}
	}
	return snap
}

func pickSubscriber(conv model.RemoteConversation, sub *model.Subscriber) model.Subscriber {
	switch {
	case sub != nil:
		return *sub
	case conv.Subscriber != nil:
		return *conv.Subscriber
	}
	return model.Subscriber{ID: conv.SubscriberID, Account: conv.Account}
}

func subscriberID(conv model.RemoteConversation, sub model.Subscriber) string {
	if conv.SubscriberID != "" {
		return conv.SubscriberID.String()
	}
	return sub.ID.String()
}

func latestTime(current *time.Time, t time.Time) *time.Time {
	if current == nil || t.After(*current) {
		return timePtr(t)
	}
	return current
}

func timePtr(t time.Time) *time.Time {
	return &t
}
