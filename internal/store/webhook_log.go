package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"eduops.app/relay/core/db/sqlc"
	"eduops.app/relay/internal/model"
)

type webhookLogStore struct {
	queries *sqlc.Queries
}

func newWebhookLogStore(queries *sqlc.Queries) WebhookLogStore {
	return &webhookLogStore{queries: queries}
}

func (s *webhookLogStore) CreateOrGet(ctx context.Context, log *model.WebhookLog) (*model.WebhookLog, bool, error) {
	row, err := s.queries.UpsertWebhookLog(ctx, sqlc.UpsertWebhookLogParams{
		ID:                     log.ID,
		Account:                string(log.Account),
		EventType:              log.EventType,
		ExternalConversationID: log.ExternalConversationID,
		Payload:                []byte(log.Payload),
		DedupeKey:              log.DedupeKey,
	})
	if err != nil {
		return nil, false, err
	}
	created := row.ID == log.ID
	return toWebhookLogModel(row), created, nil
}

func (s *webhookLogStore) GetByID(ctx context.Context, id int64) (*model.WebhookLog, error) {
	row, err := s.queries.GetWebhookLog(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toWebhookLogModel(row), nil
}

func (s *webhookLogStore) MarkProcessed(ctx context.Context, id int64, conversationID *int64) error {
	return s.queries.MarkWebhookLogProcessed(ctx, sqlc.MarkWebhookLogProcessedParams{
		ID:             id,
		ConversationID: conversationID,
	})
}

func (s *webhookLogStore) MarkFailed(ctx context.Context, id int64, errMsg string, malformed bool) error {
	return s.queries.MarkWebhookLogFailed(ctx, sqlc.MarkWebhookLogFailedParams{
		ID:              id,
		ProcessingError: &errMsg,
		Malformed:       malformed,
	})
}

func (s *webhookLogStore) ResetAttempts(ctx context.Context, id int64) error {
	return s.queries.ResetWebhookLogAttempts(ctx, id)
}

func (s *webhookLogStore) ListUnprocessed(ctx context.Context, receivedBefore time.Time, maxAttempts int32, limit int32) ([]model.WebhookLog, error) {
	rows, err := s.queries.ListUnprocessedWebhookLogs(ctx, sqlc.ListUnprocessedWebhookLogsParams{
		ReceivedBefore: timestamptz(&receivedBefore),
		MaxAttempts:    maxAttempts,
		RowLimit:       limit,
	})
	if err != nil {
		return nil, err
	}
	result := make([]model.WebhookLog, 0, len(rows))
	for _, row := range rows {
		result = append(result, *toWebhookLogModel(row))
	}
	return result, nil
}

func toWebhookLogModel(row sqlc.WebhookLog) *model.WebhookLog {
	return &model.WebhookLog{
		ID:                     row.ID,
		Account:                model.Account(row.Account),
		EventType:              row.EventType,
		ExternalConversationID: row.ExternalConversationID,
		Payload:                json.RawMessage(row.Payload),
		DedupeKey:              row.DedupeKey,
		Processed:              row.Processed,
		Malformed:              row.Malformed,
		Attempts:               row.Attempts,
		ProcessingError:        row.ProcessingError,
		ConversationID:         row.ConversationID,
		ReceivedAt:             row.ReceivedAt.Time,
		ProcessedAt:            timePtr(row.ProcessedAt),
	}
}
