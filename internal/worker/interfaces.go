package worker

import (
	"context"

	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/syncer"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// WebhookProcessor merges one persisted webhook log.
type WebhookProcessor interface {
	Process(ctx context.Context, event domain.Event) error
}

// AccountSyncer runs on-demand passes requested through the admin API.
type AccountSyncer interface {
	SyncAccount(ctx context.Context, acct model.Account) (*syncer.PassResult, error)
	Resume(acct model.Account)
}

// Sweeper replays webhook logs that never reached a merge.
type Sweeper interface {
	Sweep(ctx context.Context, params service.SweepParams) (int, error)
}
