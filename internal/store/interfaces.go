package store

import (
	"context"
	"errors"
	"time"

	"eduops.app/relay/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConversationStore is the upsert side of the attendance table. Callers run
// GetForUpdate and the write inside one transaction per conversation.
type ConversationStore interface {
	GetByID(ctx context.Context, id int64) (*model.ConversationRecord, error)
	// GetForUpdate locks the row for (account, externalID) until commit.
	GetForUpdate(ctx context.Context, account model.Account, externalID string) (*model.ConversationRecord, error)
	// Insert returns created=false when a concurrent writer inserted first.
	Insert(ctx context.Context, rec *model.ConversationRecord) (*model.ConversationRecord, bool, error)
	// UpdateIfNotStale writes rec unless the stored remote_updated_at is newer.
	// It returns false when the compare-and-swap lost.
	UpdateIfNotStale(ctx context.Context, rec *model.ConversationRecord) (bool, error)
	List(ctx context.Context, filter ConversationFilter) ([]model.ConversationRecord, error)
	CountByAccount(ctx context.Context, account model.Account) (int64, error)
}

type ConversationFilter struct {
	Account model.Account
	Status  *model.ConversationStatus
	Limit   int32
}

// WebhookLogStore is the durable log of webhook deliveries. Rows are never deleted.
type WebhookLogStore interface {
	// CreateOrGet inserts the log or returns the existing row with the same
	// (account, dedupe_key). created reports which happened.
	CreateOrGet(ctx context.Context, log *model.WebhookLog) (*model.WebhookLog, bool, error)
	GetByID(ctx context.Context, id int64) (*model.WebhookLog, error)
	MarkProcessed(ctx context.Context, id int64, conversationID *int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, malformed bool) error
	// ResetAttempts puts an unprocessed log back within the sweep's attempt cap.
	ResetAttempts(ctx context.Context, id int64) error
	ListUnprocessed(ctx context.Context, receivedBefore time.Time, maxAttempts int32, limit int32) ([]model.WebhookLog, error)
}

// SyncStateStore records the outcome of poll passes per account.
type SyncStateStore interface {
	MarkStarted(ctx context.Context, account model.Account) error
	MarkSucceeded(ctx context.Context, account model.Account) error
	MarkFailed(ctx context.Context, account model.Account, errMsg string, suspended bool) error
	List(ctx context.Context) ([]model.AccountSyncState, error)
}
