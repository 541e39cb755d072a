package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with a context that carries them.
// Sync passes set Account once; the merge path adds the conversation and webhook ids.
type LogFields struct {
	Account        *string // COMERCIAL or SUPORTE
	ConversationID *string // external conversation id on the remote platform
	WebhookLogID   *int64
	MessageID      *string // Redis stream message ID
	EventType      *string // canonical event type (e.g. "conversation_closed")
	Component      string  // e.g. "relay.syncer.pass"
}

// WithLogFields enriches context with structured log fields.
// Later calls win for every field they set.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields stored in ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.Account != nil {
		result.Account = next.Account
	}
	if next.ConversationID != nil {
		result.ConversationID = next.ConversationID
	}
	if next.WebhookLogID != nil {
		result.WebhookLogID = next.WebhookLogID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.EventType != nil {
		result.EventType = next.EventType
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{Account: logger.Ptr("SUPORTE")})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
