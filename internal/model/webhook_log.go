package model

import (
	"encoding/json"
	"time"
)

// WebhookLog is the durable record of one webhook delivery. Rows are never
// deleted; Processed stays false until a merge succeeds.
type WebhookLog struct {
	ReceivedAt             time.Time       `json:"received_at"`
	ProcessedAt            *time.Time      `json:"processed_at,omitempty"`
	ExternalConversationID *string         `json:"external_conversation_id,omitempty"`
	ProcessingError        *string         `json:"processing_error,omitempty"`
	ConversationID         *int64          `json:"conversation_id,omitempty"`
	Payload                json.RawMessage `json:"payload"`
	Account                Account         `json:"account"`
	EventType              string          `json:"event_type"`
	DedupeKey              string          `json:"dedupe_key"`
	ID                     int64           `json:"id"`
	Attempts               int32           `json:"attempts"`
	Processed              bool            `json:"processed"`
	Malformed              bool            `json:"malformed"`
}

// AccountSyncState is the last known outcome of the poller for one account.
type AccountSyncState struct {
	LastStartedAt   *time.Time `json:"last_started_at,omitempty"`
	LastSucceededAt *time.Time `json:"last_succeeded_at,omitempty"`
	LastFailedAt    *time.Time `json:"last_failed_at,omitempty"`
	LastError       *string    `json:"last_error,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Account         Account    `json:"account"`
	Suspended       bool       `json:"suspended"`
}
