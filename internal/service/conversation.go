package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eduops.app/relay/common/id"
	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/store"
)

type MergeSource string

const (
	SourcePoll    MergeSource = "poll"
	SourceWebhook MergeSource = "webhook"
)

const defaultMergeTimeout = 10 * time.Second

type MergeResult struct {
	Record  *model.ConversationRecord
	Outcome model.MergeOutcome
}

// ConversationService is the single upsert path shared by the poller and
// the webhook worker.
type ConversationService interface {
	// Merge folds snap into the stored row for (snap.Account, snap.ExternalID).
	// A snapshot older than the stored one is dropped and reported as
	// model.MergeStale with a nil error. When snap.WebhookLogID is set the
	// log is marked processed in the same transaction.
	Merge(ctx context.Context, snap model.ConversationSnapshot, source MergeSource) (*MergeResult, error)
}

type conversationService struct {
	txRunner TxRunner
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewConversationService(txRunner TxRunner, m *metrics.Metrics, timeout time.Duration, log *slog.Logger) ConversationService {
	if timeout <= 0 {
		timeout = defaultMergeTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &conversationService{
		txRunner: txRunner,
		metrics:  m,
		logger:   log,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *conversationService) Merge(ctx context.Context, snap model.ConversationSnapshot, source MergeSource) (*MergeResult, error) {
	if !snap.Account.Valid() || snap.ExternalID == "" {
		return nil, &domain.MalformedPayloadError{Source: string(source), Field: "conversation", Reason: "account and external id are required"}
	}
	if snap.RemoteUpdatedAt.IsZero() {
		return nil, &domain.MalformedPayloadError{Source: string(source), Field: "updated_at", Reason: "required"}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Account:        logger.Ptr(string(snap.Account)),
		ConversationID: logger.Ptr(snap.ExternalID),
		WebhookLogID:   snap.WebhookLogID,
	})

	// A started upsert finishes even when the caller is cancelled mid-pass.
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var result MergeResult
	err := s.txRunner.WithTx(txCtx, func(sp StoreProvider) error {
		r, err := s.mergeTx(txCtx, sp, snap)
		if err != nil {
			return err
		}
		result = r

		if snap.WebhookLogID != nil {
			var convID *int64
			if result.Record != nil && result.Record.ID != 0 {
				convID = &result.Record.ID
			}
			if err := sp.WebhookLogs().MarkProcessed(txCtx, *snap.WebhookLogID, convID); err != nil {
				return fmt.Errorf("marking webhook log processed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.Merge(string(snap.Account), string(source), "error")
		return nil, err
	}

	s.metrics.Merge(string(snap.Account), string(source), string(result.Outcome))
	if result.Outcome == model.MergeStale {
		s.logger.DebugContext(ctx, "stale snapshot dropped",
			"source", string(source),
			"remote_updated_at", snap.RemoteUpdatedAt)
	}
	return &result, nil
}

func (s *conversationService) mergeTx(ctx context.Context, sp StoreProvider, snap model.ConversationSnapshot) (MergeResult, error) {
	convs := sp.Conversations()

	existing, err := lockConversation(ctx, convs, snap)
	if err != nil {
		return MergeResult{}, err
	}
	if existing != nil {
		return s.apply(ctx, convs, existing, snap)
	}

	rec, _, _ := model.MergeConversation(nil, snap, s.now())
	rec.ID = id.New()
	stored, created, err := convs.Insert(ctx, &rec)
	if err != nil {
		return MergeResult{}, err
	}
	if created {
		return MergeResult{Record: stored, Outcome: model.MergeInserted}, nil
	}

	// Another writer inserted between the lock attempt and ours.
	existing, err = lockConversation(ctx, convs, snap)
	if err != nil {
		return MergeResult{}, err
	}
	if existing == nil {
		return MergeResult{}, fmt.Errorf("conversation %s/%s vanished after insert conflict", snap.Account, snap.ExternalID)
	}
	return s.apply(ctx, convs, existing, snap)
}

func (s *conversationService) apply(ctx context.Context, convs store.ConversationStore, existing *model.ConversationRecord, snap model.ConversationSnapshot) (MergeResult, error) {
	rec, outcome, err := model.MergeConversation(existing, snap, s.now())
	if errors.Is(err, domain.ErrConflict) {
		return MergeResult{Record: existing, Outcome: model.MergeStale}, nil
	}
	if err != nil {
		return MergeResult{}, err
	}
	if outcome == model.MergeUnchanged {
		return MergeResult{Record: existing, Outcome: outcome}, nil
	}

	ok, err := convs.UpdateIfNotStale(ctx, &rec)
	if err != nil {
		return MergeResult{}, fmt.Errorf("updating conversation: %w", err)
	}
	if !ok {
		return MergeResult{Record: existing, Outcome: model.MergeStale}, nil
	}
	return MergeResult{Record: &rec, Outcome: outcome}, nil
}

func lockConversation(ctx context.Context, convs store.ConversationStore, snap model.ConversationSnapshot) (*model.ConversationRecord, error) {
	existing, err := convs.GetForUpdate(ctx, snap.Account, snap.ExternalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking conversation: %w", err)
	}
	return existing, nil
}
