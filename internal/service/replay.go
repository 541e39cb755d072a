package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/store"
)

var (
	ErrWebhookLogNotFound  = errors.New("webhook log not found")
	ErrWebhookAlreadyDone  = errors.New("webhook log already processed")
	ErrWebhookLogMalformed = errors.New("webhook log is flagged malformed")
)

type SweepParams struct {
	ReceivedBefore time.Time
	MaxAttempts    int32
	Limit          int32
}

// ReplayService re-enqueues webhook logs that never reached a merge and
// queues out-of-schedule sync passes.
type ReplayService interface {
	Replay(ctx context.Context, webhookLogID int64) (*model.WebhookLog, error)
	Sweep(ctx context.Context, params SweepParams) (int, error)
	RequestSync(ctx context.Context, acct model.Account) error
}

type replayService struct {
	logs    store.WebhookLogStore
	queue   queue.Producer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewReplayService(logs store.WebhookLogStore, producer queue.Producer, m *metrics.Metrics, log *slog.Logger) ReplayService {
	if log == nil {
		log = slog.Default()
	}
	return &replayService{logs: logs, queue: producer, metrics: m, logger: log}
}

func (s *replayService) Replay(ctx context.Context, webhookLogID int64) (*model.WebhookLog, error) {
	entry, err := s.logs.GetByID(ctx, webhookLogID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWebhookLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading webhook log: %w", err)
	}
	switch {
	case entry.Processed:
		return entry, ErrWebhookAlreadyDone
	case entry.Malformed:
		return entry, ErrWebhookLogMalformed
	}

	// A manual replay starts a fresh attempt budget, so a log the sweep gave
	// up on becomes sweepable again if this attempt fails too.
	if err := s.logs.ResetAttempts(ctx, entry.ID); err != nil {
		return nil, fmt.Errorf("resetting webhook log attempts: %w", err)
	}
	entry.Attempts = 0

	if err := s.enqueue(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Sweep enqueues unprocessed, non-malformed logs older than the grace
// period. Enqueueing the same log twice is harmless: the processor skips
// logs that are already processed.
func (s *replayService) Sweep(ctx context.Context, params SweepParams) (int, error) {
	entries, err := s.logs.ListUnprocessed(ctx, params.ReceivedBefore, params.MaxAttempts, params.Limit)
	if err != nil {
		return 0, fmt.Errorf("listing unprocessed webhook logs: %w", err)
	}

	replayed := 0
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		if err := s.enqueue(ctx, &entries[i]); err != nil {
			s.logger.WarnContext(ctx, "sweep enqueue failed", "webhook_log_id", entries[i].ID, "error", err)
			continue
		}
		replayed++
	}
	s.metrics.SweepReplayed(replayed)
	if replayed > 0 {
		s.logger.InfoContext(ctx, "swept unprocessed webhook logs", "replayed", replayed, "found", len(entries))
	}
	return replayed, nil
}

func (s *replayService) RequestSync(ctx context.Context, acct model.Account) error {
	if !acct.Valid() {
		return fmt.Errorf("unknown account %q", acct)
	}
	if err := s.queue.Enqueue(ctx, queue.Task{
		TaskType: queue.TaskTypeSyncAccount,
		Account:  string(acct),
		Attempt:  1,
	}); err != nil {
		return fmt.Errorf("enqueueing sync task: %w", err)
	}
	return nil
}

func (s *replayService) enqueue(ctx context.Context, entry *model.WebhookLog) error {
	if err := s.queue.Enqueue(ctx, queue.Task{
		TaskType:     queue.TaskTypeWebhook,
		WebhookLogID: entry.ID,
		Account:      string(entry.Account),
		EventType:    entry.EventType,
		Attempt:      int(entry.Attempts) + 1,
	}); err != nil {
		return fmt.Errorf("enqueueing webhook log %d: %w", entry.ID, err)
	}
	return nil
}
