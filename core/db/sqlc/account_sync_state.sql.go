// Written in the layout sqlc v1.30.0 emits for sqlc.yaml; running
// `go tool sqlc generate` replaces it.
// source: account_sync_state.sql

package sqlc

import (
	"context"
)

const listSyncStates = `-- name: ListSyncStates :many
SELECT account, last_started_at, last_succeeded_at, last_failed_at, last_error, suspended, updated_at FROM account_sync_state
ORDER BY account
`

func (q *Queries) ListSyncStates(ctx context.Context) ([]AccountSyncState, error) {
	rows, err := q.db.Query(ctx, listSyncStates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountSyncState
	for rows.Next() {
		var i AccountSyncState
		if err := rows.Scan(
			&i.Account,
			&i.LastStartedAt,
			&i.LastSucceededAt,
			&i.LastFailedAt,
			&i.LastError,
			&i.Suspended,
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

const markSyncFailed = `-- name: MarkSyncFailed :exec
INSERT INTO account_sync_state (account, last_failed_at, last_error, suspended, updated_at)
VALUES ($1, now(), $2, $3, now())
ON CONFLICT (account) DO UPDATE SET
    last_failed_at = now(),
    last_error     = EXCLUDED.last_error,
    suspended      = EXCLUDED.suspended,
    updated_at     = now()
`

type MarkSyncFailedParams struct {
	Account   string  `json:"account"`
	LastError *string `json:"last_error"`
	Suspended bool    `json:"suspended"`
}

func (q *Queries) MarkSyncFailed(ctx context.Context, arg MarkSyncFailedParams) error {
	_, err := q.db.Exec(ctx, markSyncFailed, arg.Account, arg.LastError, arg.Suspended)
	return err
}

const markSyncStarted = `-- name: MarkSyncStarted :exec
INSERT INTO account_sync_state (account, last_started_at, updated_at)
VALUES ($1, now(), now())
ON CONFLICT (account) DO UPDATE SET
    last_started_at = now(),
    updated_at      = now()
`

func (q *Queries) MarkSyncStarted(ctx context.Context, account string) error {
	_, err := q.db.Exec(ctx, markSyncStarted, account)
	return err
}

const markSyncSucceeded = `-- name: MarkSyncSucceeded :exec
INSERT INTO account_sync_state (account, last_succeeded_at, suspended, updated_at)
VALUES ($1, now(), false, now())
ON CONFLICT (account) DO UPDATE SET
    last_succeeded_at = now(),
    last_error        = NULL,
    suspended         = false,
    updated_at        = now()
`

func (q *Queries) MarkSyncSucceeded(ctx context.Context, account string) error {
	_, err := q.db.Exec(ctx, markSyncSucceeded, account)
	return err
}
