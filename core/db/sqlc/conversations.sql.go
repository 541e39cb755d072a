// Written in the layout sqlc v1.30.0 emits for sqlc.yaml; running
// `go tool sqlc generate` replaces it.
// source: conversations.sql

package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const countConversationsByAccount = `-- name: CountConversationsByAccount :one
SELECT COUNT(*) FROM conversations
WHERE account = $1
`

func (q *Queries) CountConversationsByAccount(ctx context.Context, account string) (int64, error) {
	row := q.db.QueryRow(ctx, countConversationsByAccount, account)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getConversation = `-- name: GetConversation :one
SELECT id, account, external_id, subscriber_id, lead_name, lead_phone, attendant_id, attendant_name, attendant_email, department, status, duration_seconds, started_at, first_reply_at, last_message_at, closed_at, reopened_at, remote_updated_at, webhook_log_id, created_at, updated_at FROM conversations
WHERE id = $1
`

func (q *Queries) GetConversation(ctx context.Context, id int64) (Conversation, error) {
	row := q.db.QueryRow(ctx, getConversation, id)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.Account,
		&i.ExternalID,
		&i.SubscriberID,
		&i.LeadName,
		&i.LeadPhone,
		&i.AttendantID,
		&i.AttendantName,
		&i.AttendantEmail,
		&i.Department,
		&i.Status,
		&i.DurationSeconds,
		&i.StartedAt,
		&i.FirstReplyAt,
		&i.LastMessageAt,
		&i.ClosedAt,
		&i.ReopenedAt,
		&i.RemoteUpdatedAt,
		&i.WebhookLogID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getConversationForUpdate = `-- name: GetConversationForUpdate :one
SELECT id, account, external_id, subscriber_id, lead_name, lead_phone, attendant_id, attendant_name, attendant_email, department, status, duration_seconds, started_at, first_reply_at, last_message_at, closed_at, reopened_at, remote_updated_at, webhook_log_id, created_at, updated_at FROM conversations
WHERE account = $1 AND external_id = $2
FOR UPDATE
`

type GetConversationForUpdateParams struct {
	Account    string `json:"account"`
	ExternalID string `json:"external_id"`
}

func (q *Queries) GetConversationForUpdate(ctx context.Context, arg GetConversationForUpdateParams) (Conversation, error) {
	row := q.db.QueryRow(ctx, getConversationForUpdate, arg.Account, arg.ExternalID)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.Account,
		&i.ExternalID,
		&i.SubscriberID,
		&i.LeadName,
		&i.LeadPhone,
		&i.AttendantID,
		&i.AttendantName,
		&i.AttendantEmail,
		&i.Department,
		&i.Status,
		&i.DurationSeconds,
		&i.StartedAt,
		&i.FirstReplyAt,
		&i.LastMessageAt,
		&i.ClosedAt,
		&i.ReopenedAt,
		&i.RemoteUpdatedAt,
		&i.WebhookLogID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertConversation = `-- name: InsertConversation :one
INSERT INTO conversations (
    id, account, external_id, subscriber_id, lead_name, lead_phone,
    attendant_id, attendant_name, attendant_email, department, status,
    duration_seconds, started_at, first_reply_at, last_message_at, closed_at,
    reopened_at, remote_updated_at, webhook_log_id
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
)
ON CONFLICT (account, external_id) DO NOTHING
RETURNING id, account, external_id, subscriber_id, lead_name, lead_phone, attendant_id, attendant_name, attendant_email, department, status, duration_seconds, started_at, first_reply_at, last_message_at, closed_at, reopened_at, remote_updated_at, webhook_log_id, created_at, updated_at
`

type InsertConversationParams struct {
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
}

func (q *Queries) InsertConversation(ctx context.Context, arg InsertConversationParams) (Conversation, error) {
	row := q.db.QueryRow(ctx, insertConversation,
		arg.ID,
		arg.Account,
		arg.ExternalID,
		arg.SubscriberID,
		arg.LeadName,
		arg.LeadPhone,
		arg.AttendantID,
		arg.AttendantName,
		arg.AttendantEmail,
		arg.Department,
		arg.Status,
		arg.DurationSeconds,
		arg.StartedAt,
		arg.FirstReplyAt,
		arg.LastMessageAt,
		arg.ClosedAt,
		arg.ReopenedAt,
		arg.RemoteUpdatedAt,
		arg.WebhookLogID,
	)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.Account,
		&i.ExternalID,
		&i.SubscriberID,
		&i.LeadName,
		&i.LeadPhone,
		&i.AttendantID,
		&i.AttendantName,
		&i.AttendantEmail,
		&i.Department,
		&i.Status,
		&i.DurationSeconds,
		&i.StartedAt,
		&i.FirstReplyAt,
		&i.LastMessageAt,
		&i.ClosedAt,
		&i.ReopenedAt,
		&i.RemoteUpdatedAt,
		&i.WebhookLogID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listConversations = `-- name: ListConversations :many
SELECT id, account, external_id, subscriber_id, lead_name, lead_phone, attendant_id, attendant_name, attendant_email, department, status, duration_seconds, started_at, first_reply_at, last_message_at, closed_at, reopened_at, remote_updated_at, webhook_log_id, created_at, updated_at FROM conversations
WHERE account = $1
  AND ($2::text IS NULL OR status = $2)
ORDER BY COALESCE(last_message_at, created_at) DESC
LIMIT $3
`

type ListConversationsParams struct {
	Account  string  `json:"account"`
	Status   *string `json:"status"`
	RowLimit int32   `json:"row_limit"`
}

func (q *Queries) ListConversations(ctx context.Context, arg ListConversationsParams) ([]Conversation, error) {
	rows, err := q.db.Query(ctx, listConversations, arg.Account, arg.Status, arg.RowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Conversation
	for rows.Next() {
		var i Conversation
		if err := rows.Scan(
			&i.ID,
			&i.Account,
			&i.ExternalID,
			&i.SubscriberID,
			&i.LeadName,
			&i.LeadPhone,
			&i.AttendantID,
			&i.AttendantName,
			&i.AttendantEmail,
			&i.Department,
			&i.Status,
			&i.DurationSeconds,
			&i.StartedAt,
			&i.FirstReplyAt,
			&i.LastMessageAt,
			&i.ClosedAt,
			&i.ReopenedAt,
			&i.RemoteUpdatedAt,
			&i.WebhookLogID,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const updateConversation = `-- name: UpdateConversation :execrows
UPDATE conversations SET
    subscriber_id     = $2,
    lead_name         = $3,
    lead_phone        = $4,
    attendant_id      = $5,
    attendant_name    = $6,
    attendant_email   = $7,
    department        = $8,
    status            = $9,
    duration_seconds  = $10,
    started_at        = $11,
    first_reply_at    = $12,
    last_message_at   = $13,
    closed_at         = $14,
    reopened_at       = $15,
    remote_updated_at = $16,
    webhook_log_id    = $17,
    updated_at        = now()
WHERE id = $1 AND remote_updated_at <= $16
`

type UpdateConversationParams struct {
	ID              int64              `json:"id"`
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
}

func (q *Queries) UpdateConversation(ctx context.Context, arg UpdateConversationParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateConversation,
		arg.ID,
		arg.SubscriberID,
		arg.LeadName,
		arg.LeadPhone,
		arg.AttendantID,
		arg.AttendantName,
		arg.AttendantEmail,
		arg.Department,
		arg.Status,
		arg.DurationSeconds,
		arg.StartedAt,
		arg.FirstReplyAt,
		arg.LastMessageAt,
		arg.ClosedAt,
		arg.ReopenedAt,
		arg.RemoteUpdatedAt,
		arg.WebhookLogID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
