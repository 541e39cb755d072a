package domain

import (
	"encoding/json"
	"time"
)

// EventType is the canonical type of a platform webhook after mapping.
type EventType string

const (
	EventMessageReceived      EventType = "message_received"
	EventMessageSent          EventType = "message_sent"
	EventConversationAssigned EventType = "conversation_assigned"
	EventConversationClosed   EventType = "conversation_closed"
	EventConversationReopened EventType = "conversation_reopened"
	EventSubscriberUpdated    EventType = "subscriber_updated"
)

func (t EventType) Valid() bool {
	switch t {
	case EventMessageReceived, EventMessageSent, EventConversationAssigned,
		EventConversationClosed, EventConversationReopened, EventSubscriberUpdated:
		return true
	}
	return false
}

// Event is a persisted webhook log entry handed to the processor.
type Event struct {
	WebhookLogID int64           // webhook_logs.id
	Account      string          // webhook_logs.account
	Type         EventType       // webhook_logs.event_type
	Payload      json.RawMessage // raw body as received
	TraceID      *string         // propagated from the ingress request
	Attempt      int             // delivery attempt from the stream message
	ReceivedAt   time.Time
}
