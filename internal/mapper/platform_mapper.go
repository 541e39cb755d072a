package mapper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"eduops.app/relay/internal/domain"
)

// EventHeader carries the event name when the body does not.
const EventHeader = "X-Webhook-Event"

// The platform has renamed events across API versions; every spelling seen
// in deliveries maps here after lowercasing and turning "." and "-" into "_".
var platformEvents = map[string]domain.EventType{
	"message_received":      domain.EventMessageReceived,
	"new_message":           domain.EventMessageReceived,
	"message_in":            domain.EventMessageReceived,
	"incoming_message":      domain.EventMessageReceived,
	"message_sent":          domain.EventMessageSent,
	"message_out":           domain.EventMessageSent,
	"outgoing_message":      domain.EventMessageSent,
	"conversation_assigned": domain.EventConversationAssigned,
	"chat_assigned":         domain.EventConversationAssigned,
	"chat_transferred":      domain.EventConversationAssigned,
	"conversation_closed":   domain.EventConversationClosed,
	"chat_closed":           domain.EventConversationClosed,
	"chat_finished":         domain.EventConversationClosed,
	"conversation_reopened": domain.EventConversationReopened,
	"chat_reopened":         domain.EventConversationReopened,
	"subscriber_updated":    domain.EventSubscriberUpdated,
	"contact_updated":       domain.EventSubscriberUpdated,
}

type PlatformEventMapper struct{}

func NewPlatformEventMapper() *PlatformEventMapper {
	return &PlatformEventMapper{}
}

func (m *PlatformEventMapper) Map(ctx context.Context, body map[string]any, headers map[string]string) (domain.EventType, error) {
	name := ""
	if v, ok := body["event"].(string); ok {
		name = v
	}
	if name == "" {
		name = headers[EventHeader]
	}
	if name == "" {
		return "", &domain.MalformedPayloadError{Source: "webhook", Field: "event", Reason: "missing event name"}
	}

	eventType, ok := platformEvents[normalizeEventName(name)]
	if !ok {
		return "", fmt.Errorf("unknown platform event %q", name)
	}
	return eventType, nil
}

func normalizeEventName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

// ExternalConversationID digs conversation.id out of an undecoded body so the
// log row can be indexed before the payload is validated.
func ExternalConversationID(body map[string]any) string {
	conv, ok := body["conversation"].(map[string]any)
	if !ok {
		return ""
	}
	switch v := conv["id"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// EventID returns the platform's delivery id, used for dedupe when present.
func EventID(body map[string]any) string {
	for _, key := range []string{"event_id", "delivery_id", "id"} {
		switch v := body[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
