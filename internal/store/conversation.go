package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"eduops.app/relay/core/db/sqlc"
	"eduops.app/relay/internal/model"
)

type conversationStore struct {
	queries *sqlc.Queries
}

func newConversationStore(queries *sqlc.Queries) ConversationStore {
	return &conversationStore{queries: queries}
}

func (s *conversationStore) GetByID(ctx context.Context, id int64) (*model.ConversationRecord, error) {
	row, err := s.queries.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toConversationModel(row), nil
}

func (s *conversationStore) GetForUpdate(ctx context.Context, account model.Account, externalID string) (*model.ConversationRecord, error) {
	row, err := s.queries.GetConversationForUpdate(ctx, sqlc.GetConversationForUpdateParams{
		Account:    string(account),
		ExternalID: externalID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toConversationModel(row), nil
}

func (s *conversationStore) Insert(ctx context.Context, rec *model.ConversationRecord) (*model.ConversationRecord, bool, error) {
	row, err := s.queries.InsertConversation(ctx, sqlc.InsertConversationParams{
		ID:              rec.ID,
		Account:         string(rec.Account),
		ExternalID:      rec.ExternalID,
		SubscriberID:    rec.SubscriberID,
		LeadName:        rec.LeadName,
		LeadPhone:       rec.LeadPhone,
		AttendantID:     rec.AttendantID,
		AttendantName:   rec.AttendantName,
		AttendantEmail:  rec.AttendantEmail,
		Department:      rec.Department,
		Status:          string(rec.Status),
		DurationSeconds: rec.DurationSeconds,
		StartedAt:       timestamptz(rec.StartedAt),
		FirstReplyAt:    timestamptz(rec.FirstReplyAt),
		LastMessageAt:   timestamptz(rec.LastMessageAt),
		ClosedAt:        timestamptz(rec.ClosedAt),
		ReopenedAt:      timestamptz(rec.ReopenedAt),
		RemoteUpdatedAt: timestamptz(&rec.RemoteUpdatedAt),
		WebhookLogID:    rec.WebhookLogID,
	})
	if err != nil {
		// ON CONFLICT DO NOTHING returns no row.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("inserting conversation: %w", err)
	}
	return toConversationModel(row), true, nil
}

func (s *conversationStore) UpdateIfNotStale(ctx context.Context, rec *model.ConversationRecord) (bool, error) {
	n, err := s.queries.UpdateConversation(ctx, sqlc.UpdateConversationParams{
		ID:              rec.ID,
		SubscriberID:    rec.SubscriberID,
		LeadName:        rec.LeadName,
		LeadPhone:       rec.LeadPhone,
		AttendantID:     rec.AttendantID,
		AttendantName:   rec.AttendantName,
		AttendantEmail:  rec.AttendantEmail,
		Department:      rec.Department,
		Status:          string(rec.Status),
		DurationSeconds: rec.DurationSeconds,
		StartedAt:       timestamptz(rec.StartedAt),
		FirstReplyAt:    timestamptz(rec.FirstReplyAt),
		LastMessageAt:   timestamptz(rec.LastMessageAt),
		ClosedAt:        timestamptz(rec.ClosedAt),
		ReopenedAt:      timestamptz(rec.ReopenedAt),
		RemoteUpdatedAt: timestamptz(&rec.RemoteUpdatedAt),
		WebhookLogID:    rec.WebhookLogID,
	})
	if err != nil {
		return false, fmt.Errorf("updating conversation: %w", err)
	}
	return n == 1, nil
}

func (s *conversationStore) List(ctx context.Context, filter ConversationFilter) ([]model.ConversationRecord, error) {
	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.queries.ListConversations(ctx, sqlc.ListConversationsParams{
		Account:  string(filter.Account),
		Status:   status,
		RowLimit: limit,
	})
	if err != nil {
		return nil, err
	}
	result := make([]model.ConversationRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, *toConversationModel(row))
	}
	return result, nil
}

func (s *conversationStore) CountByAccount(ctx context.Context, account model.Account) (int64, error) {
	return s.queries.CountConversationsByAccount(ctx, string(account))
}

func toConversationModel(row sqlc.Conversation) *model.ConversationRecord {
	return &model.ConversationRecord{
		ID:              row.ID,
		Account:         model.Account(row.Account),
		ExternalID:      row.ExternalID,
		SubscriberID:    row.SubscriberID,
		LeadName:        row.LeadName,
		LeadPhone:       row.LeadPhone,
		AttendantID:     row.AttendantID,
		AttendantName:   row.AttendantName,
		AttendantEmail:  row.AttendantEmail,
		Department:      row.Department,
		Status:          model.ConversationStatus(row.Status),
		DurationSeconds: row.DurationSeconds,
		StartedAt:       timePtr(row.StartedAt),
		FirstReplyAt:    timePtr(row.FirstReplyAt),
		LastMessageAt:   timePtr(row.LastMessageAt),
		ClosedAt:        timePtr(row.ClosedAt),
		ReopenedAt:      timePtr(row.ReopenedAt),
		RemoteUpdatedAt: row.RemoteUpdatedAt.Time,
		WebhookLogID:    row.WebhookLogID,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
