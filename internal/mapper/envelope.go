package mapper

import (
	"encoding/json"
	"fmt"

	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
)

// WebhookEnvelope is the body of one platform delivery. Subscriber may sit at
// the top level or inside the conversation.
type WebhookEnvelope struct {
	Event        string                    `json:"event" jsonschema:"required,description=Platform event name such as chat.closed"`
	EventID      string                    `json:"event_id,omitempty" jsonschema:"description=Delivery id used for dedupe"`
	Timestamp    model.RemoteTime          `json:"timestamp,omitempty"`
	Conversation *model.RemoteConversation `json:"conversation" jsonschema:"required"`
	Subscriber   *model.Subscriber         `json:"subscriber,omitempty"`
	Message      *model.Message            `json:"message,omitempty"`
}

// Webhook is a validated delivery ready for normalization.
type Webhook struct {
	Type         domain.EventType
	Conversation model.RemoteConversation
	Subscriber   model.Subscriber
	Message      *model.Message
}

// DecodeWebhook validates raw against the fields the merge path needs and
// stamps acct on every entity. Failures are *domain.MalformedPayloadError.
func DecodeWebhook(acct model.Account, eventType domain.EventType, raw []byte) (*Webhook, error) {
	var env WebhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.MalformedPayloadError{Source: "webhook", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if env.Conversation == nil || env.Conversation.ID == "" {
		return nil, &domain.MalformedPayloadError{Source: "webhook", Field: "conversation.id", Reason: "required"}
	}
	conv := *env.Conversation

	sub := env.Subscriber
	if sub == nil {
		sub = conv.Subscriber
	}
	if sub == nil {
		return nil, &domain.MalformedPayloadError{Source: "webhook", Field: "subscriber", Reason: "required"}
	}

	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = env.Timestamp
	}
	if conv.SubscriberID == "" {
		conv.SubscriberID = sub.ID
	}
	if sub.ID == "" {
		sub.ID = conv.SubscriberID
	}

	conv.Account = acct
	conv.Subscriber = nil
	subscriber := *sub
	subscriber.Account = acct

	if err := conv.Validate(); err != nil {
		return nil, &domain.MalformedPayloadError{Source: "webhook", Field: "conversation", Reason: err.Error()}
	}

	return &Webhook{
		Type:         eventType,
		Conversation: conv,
		Subscriber:   subscriber,
		Message:      env.Message,
	}, nil
}
