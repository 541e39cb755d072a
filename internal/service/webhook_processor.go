package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/mapper"
	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/resolver"
	"eduops.app/relay/internal/store"
)

// ManagerLookup returns the account's manager list, usually from a cache.
type ManagerLookup interface {
	Managers(ctx context.Context, acct model.Account) ([]model.Manager, error)
}

// WebhookProcessor turns one persisted webhook log into a conversation merge.
// A nil error means the log needs no further delivery: it was merged, was
// already processed, or was flagged malformed.
type WebhookProcessor interface {
	Process(ctx context.Context, event domain.Event) error
}

type webhookProcessor struct {
	logs          store.WebhookLogStore
	conversations ConversationService
	managers      ManagerLookup
	resolver      *resolver.Resolver
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewWebhookProcessor(
	logs store.WebhookLogStore,
	conversations ConversationService,
	managers ManagerLookup,
	res *resolver.Resolver,
	m *metrics.Metrics,
	log *slog.Logger,
) WebhookProcessor {
	if log == nil {
		log = slog.Default()
	}
	if res == nil {
		res = resolver.New(log, nil)
	}
	return &webhookProcessor{
		logs:          logs,
		conversations: conversations,
		managers:      managers,
		resolver:      res,
		metrics:       m,
		logger:        log,
	}
}

func (p *webhookProcessor) Process(ctx context.Context, event domain.Event) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{WebhookLogID: &event.WebhookLogID})

	entry, err := p.logs.GetByID(ctx, event.WebhookLogID)
	if errors.Is(err, store.ErrNotFound) {
		p.logger.WarnContext(ctx, "webhook log not found, dropping task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading webhook log: %w", err)
	}

	acct := entry.Account
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Account:        logger.Ptr(string(acct)),
		EventType:      logger.Ptr(entry.EventType),
		ConversationID: entry.ExternalConversationID,
	})

	if entry.Processed || entry.Malformed {
		p.logger.DebugContext(ctx, "webhook log already settled", "processed", entry.Processed, "malformed", entry.Malformed)
		return nil
	}

	eventType := domain.EventType(entry.EventType)
	if !eventType.Valid() {
		return p.malformed(ctx, entry, &domain.MalformedPayloadError{Source: "webhook", Field: "event", Reason: fmt.Sprintf("unmapped event %q", entry.EventType)})
	}

	wh, err := mapper.DecodeWebhook(acct, eventType, entry.Payload)
	if err != nil {
		var malformed *domain.MalformedPayloadError
		if eventType == domain.EventSubscriberUpdated && errors.As(err, &malformed) && malformed.Field == "conversation.id" {
			// Contact-only updates reach the table on the next poll.
			if err := p.logs.MarkProcessed(ctx, entry.ID, nil); err != nil {
				return fmt.Errorf("marking webhook log processed: %w", err)
			}
			p.metrics.WebhookProcessed(string(acct), "skipped")
			return nil
		}
		return p.malformed(ctx, entry, err)
	}

	managers, err := p.managers.Managers(ctx, acct)
	if err != nil {
		return p.failed(ctx, entry, fmt.Errorf("resolving managers: %w", err))
	}
	attendant := p.resolver.Manager(ctx, wh.Subscriber, acct, managers)

	snap := SnapshotFromWebhook(wh, attendant, entry.ID)
	result, err := p.conversations.Merge(ctx, snap, SourceWebhook)
	if err != nil {
		if domain.IsMalformed(err) {
			return p.malformed(ctx, entry, err)
		}
		return p.failed(ctx, entry, err)
	}

	p.metrics.WebhookProcessed(string(acct), string(result.Outcome))
	p.logger.InfoContext(ctx, "webhook merged",
		"outcome", string(result.Outcome),
		"attempt", event.Attempt)
	return nil
}

// malformed flags the log for manual inspection. It stays unprocessed and
// the sweeper skips it.
func (p *webhookProcessor) malformed(ctx context.Context, entry *model.WebhookLog, cause error) error {
	p.logger.WarnContext(ctx, "malformed webhook payload", "error", cause)
	p.metrics.WebhookProcessed(string(entry.Account), "malformed")
	if err := p.logs.MarkFailed(ctx, entry.ID, cause.Error(), true); err != nil {
		return fmt.Errorf("flagging malformed webhook log: %w", err)
	}
	return nil
}

func (p *webhookProcessor) failed(ctx context.Context, entry *model.WebhookLog, cause error) error {
	p.metrics.WebhookProcessed(string(entry.Account), "error")
	if err := p.logs.MarkFailed(ctx, entry.ID, logger.Truncate(cause.Error(), 1000), false); err != nil {
		p.logger.ErrorContext(ctx, "failed to record webhook failure", "error", err)
	}
	return cause
}
