// Written in the layout sqlc v1.30.0 emits for sqlc.yaml; running
// `go tool sqlc generate` replaces it.

package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type AccountSyncState struct {
	Account         string             `json:"account"`
	LastStartedAt   pgtype.Timestamptz `json:"last_started_at"`
	LastSucceededAt pgtype.Timestamptz `json:"last_succeeded_at"`
	LastFailedAt    pgtype.Timestamptz `json:"last_failed_at"`
	LastError       *string            `json:"last_error"`
	Suspended       bool               `json:"suspended"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type Conversation struct {
	ID              int64              `json:"id"`
	Account         string             `json:"account"`
	ExternalID      string             `json:"external_id"`
	SubscriberID    string             `json:"subscriber_id"`
	LeadName        string             `json:"lead_name"`
	LeadPhone       string             `json:"lead_phone"`
	AttendantID     *string            `json:"attendant_id"`
	AttendantName   *string            `json:"attendant_name"`
	AttendantEmail  *string            `json:"attendant_email"`
	Department      *string            `json:"department"`
	Status          string             `json:"status"`
	DurationSeconds int64              `json:"duration_seconds"`
	StartedAt       pgtype.Timestamptz `json:"started_at"`
	FirstReplyAt    pgtype.Timestamptz `json:"first_reply_at"`
	LastMessageAt   pgtype.Timestamptz `json:"last_message_at"`
	ClosedAt        pgtype.Timestamptz `json:"closed_at"`
	ReopenedAt      pgtype.Timestamptz `json:"reopened_at"`
	RemoteUpdatedAt pgtype.Timestamptz `json:"remote_updated_at"`
	WebhookLogID    *int64             `json:"webhook_log_id"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type WebhookLog struct {
	ID                     int64              `json:"id"`
	Account                string             `json:"account"`
	EventType              string             `json:"event_type"`
	ExternalConversationID *string            `json:"external_conversation_id"`
	Payload                []byte             `json:"payload"`
	DedupeKey              string             `json:"dedupe_key"`
	Processed              bool               `json:"processed"`
	Malformed              bool               `json:"malformed"`
	Attempts               int32              `json:"attempts"`
	ProcessingError        *string            `json:"processing_error"`
	ConversationID         *int64             `json:"conversation_id"`
	ReceivedAt             pgtype.Timestamptz `json:"received_at"`
	ProcessedAt            pgtype.Timestamptz `json:"processed_at"`
}
