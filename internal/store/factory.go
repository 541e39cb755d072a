package store

import (
	"eduops.app/relay/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Conversations() ConversationStore {
	return newConversationStore(s.queries)
}

func (s *Stores) WebhookLogs() WebhookLogStore {
	return newWebhookLogStore(s.queries)
}

func (s *Stores) SyncStates() SyncStateStore {
	return newSyncStateStore(s.queries)
}
