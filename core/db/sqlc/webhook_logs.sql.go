// Written in the layout sqlc v1.30.0 emits for sqlc.yaml; running
// `go tool sqlc generate` replaces it.
// source: webhook_logs.sql

package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getWebhookLog = `-- name: GetWebhookLog :one
SELECT id, account, event_type, external_conversation_id, payload, dedupe_key, processed, malformed, attempts, processing_error, conversation_id, received_at, processed_at FROM webhook_logs
WHERE id = $1
`

func (q *Queries) GetWebhookLog(ctx context.Context, id int64) (WebhookLog, error) {
	row := q.db.QueryRow(ctx, getWebhookLog, id)
	var i WebhookLog
	err := row.Scan(
		&i.ID,
		&i.Account,
		&i.EventType,
		&i.ExternalConversationID,
		&i.Payload,
		&i.DedupeKey,
		&i.Processed,
		&i.Malformed,
		&i.Attempts,
		&i.ProcessingError,
		&i.ConversationID,
		&i.ReceivedAt,
		&i.ProcessedAt,
	)
	return i, err
}

const listUnprocessedWebhookLogs = `-- name: ListUnprocessedWebhookLogs :many
SELECT id, account, event_type, external_conversation_id, payload, dedupe_key, processed, malformed, attempts, processing_error, conversation_id, received_at, processed_at FROM webhook_logs
WHERE processed = false
  AND malformed = false
  AND received_at < $1
  AND attempts < $2
ORDER BY received_at
LIMIT $3
`

type ListUnprocessedWebhookLogsParams struct {
	ReceivedBefore pgtype.Timestamptz `json:"received_before"`
	MaxAttempts    int32              `json:"max_attempts"`
	RowLimit       int32              `json:"row_limit"`
}

func (q *Queries) ListUnprocessedWebhookLogs(ctx context.Context, arg ListUnprocessedWebhookLogsParams) ([]WebhookLog, error) {
	rows, err := q.db.Query(ctx, listUnprocessedWebhookLogs, arg.ReceivedBefore, arg.MaxAttempts, arg.RowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WebhookLog
	for rows.Next() {
		var i WebhookLog
		if err := rows.Scan(
			&i.ID,
			&i.Account,
			&i.EventType,
			&i.ExternalConversationID,
			&i.Payload,
			&i.DedupeKey,
			&i.Processed,
			&i.Malformed,
			&i.Attempts,
			&i.ProcessingError,
			&i.ConversationID,
			&i.ReceivedAt,
			&i.ProcessedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markWebhookLogFailed = `-- name: MarkWebhookLogFailed :exec
UPDATE webhook_logs SET
    processing_error = $2,
    malformed        = $3,
    attempts         = attempts + 1
WHERE id = $1 AND processed = false
`

type MarkWebhookLogFailedParams struct {
	ID              int64   `json:"id"`
	ProcessingError *string `json:"processing_error"`
	Malformed       bool    `json:"malformed"`
}

func (q *Queries) MarkWebhookLogFailed(ctx context.Context, arg MarkWebhookLogFailedParams) error {
	_, err := q.db.Exec(ctx, markWebhookLogFailed, arg.ID, arg.ProcessingError, arg.Malformed)
	return err
}

const markWebhookLogProcessed = `-- name: MarkWebhookLogProcessed :exec
UPDATE webhook_logs SET
    processed        = true,
    processed_at     = now(),
    processing_error = NULL,
    conversation_id  = $2,
    attempts         = attempts + 1
WHERE id = $1
`

type MarkWebhookLogProcessedParams struct {
	ID             int64  `json:"id"`
	ConversationID *int64 `json:"conversation_id"`
}

func (q *Queries) MarkWebhookLogProcessed(ctx context.Context, arg MarkWebhookLogProcessedParams) error {
	_, err := q.db.Exec(ctx, markWebhookLogProcessed, arg.ID, arg.ConversationID)
	return err
}

const resetWebhookLogAttempts = `-- name: ResetWebhookLogAttempts :exec
UPDATE webhook_logs SET
    attempts = 0
WHERE id = $1 AND processed = false
`

// Gives a manually replayed log a fresh sweep budget.
func (q *Queries) ResetWebhookLogAttempts(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, resetWebhookLogAttempts, id)
	return err
}

const upsertWebhookLog = `-- name: UpsertWebhookLog :one
INSERT INTO webhook_logs (
    id, account, event_type, external_conversation_id, payload, dedupe_key
) VALUES (
    $1, $2, $3, $4, $5, $6
)
ON CONFLICT (account, dedupe_key) DO UPDATE SET dedupe_key = EXCLUDED.dedupe_key
RETURNING id, account, event_type, external_conversation_id, payload, dedupe_key, processed, malformed, attempts, processing_error, conversation_id, received_at, processed_at
`

type UpsertWebhookLogParams struct {
	ID                     int64   `json:"id"`
	Account                string  `json:"account"`
	EventType              string  `json:"event_type"`
	ExternalConversationID *string `json:"external_conversation_id"`
	Payload                []byte  `json:"payload"`
	DedupeKey              string  `json:"dedupe_key"`
}

// Returns the existing row on a repeated delivery; callers compare ids to
// tell a fresh insert from a duplicate.
func (q *Queries) UpsertWebhookLog(ctx context.Context, arg UpsertWebhookLogParams) (WebhookLog, error) {
	row := q.db.QueryRow(ctx, upsertWebhookLog,
		arg.ID,
		arg.Account,
		arg.EventType,
		arg.ExternalConversationID,
		arg.Payload,
		arg.DedupeKey,
	)
	var i WebhookLog
	err := row.Scan(
		&i.ID,
		&i.Account,
		&i.EventType,
		&i.ExternalConversationID,
		&i.Payload,
		&i.DedupeKey,
		&i.Processed,
		&i.Malformed,
		&i.Attempts,
		&i.ProcessingError,
		&i.ConversationID,
		&i.ReceivedAt,
		&i.ProcessedAt,
	)
	return i, err
}
