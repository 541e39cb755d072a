package store

import (
	"context"

	"eduops.app/relay/core/db/sqlc"
	"eduops.app/relay/internal/model"
)

type syncStateStore struct {
	queries *sqlc.Queries
}

func newSyncStateStore(queries *sqlc.Queries) SyncStateStore {
	return &syncStateStore{queries: queries}
}

func (s *syncStateStore) MarkStarted(ctx context.Context, account model.Account) error {
	return s.queries.MarkSyncStarted(ctx, string(account))
}

func (s *syncStateStore) MarkSucceeded(ctx context.Context, account model.Account) error {
	return s.queries.MarkSyncSucceeded(ctx, string(account))
}

func (s *syncStateStore) MarkFailed(ctx context.Context, account model.Account, errMsg string, suspended bool) error {
	return s.queries.MarkSyncFailed(ctx, sqlc.MarkSyncFailedParams{
		Account:   string(account),
		LastError: &errMsg,
		Suspended: suspended,
	})
}

func (s *syncStateStore) List(ctx context.Context) ([]model.AccountSyncState, error) {
	rows, err := s.queries.ListSyncStates(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]model.AccountSyncState, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.AccountSyncState{
			Account:         model.Account(row.Account),
			LastStartedAt:   timePtr(row.LastStartedAt),
			LastSucceededAt: timePtr(row.LastSucceededAt),
			LastFailedAt:    timePtr(row.LastFailedAt),
			LastError:       row.LastError,
			Suspended:       row.Suspended,
			UpdatedAt:       row.UpdatedAt.Time,
		})
	}
	return result, nil
}
