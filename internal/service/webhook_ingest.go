package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"eduops.app/relay/common/id"
	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/mapper"
	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/store"
)

// unknownEventType is stored for deliveries whose event could not be mapped.
const unknownEventType = "unknown"

type WebhookIngestParams struct {
	Account string
	Body    []byte
	Headers map[string]string
	TraceID *string
}

type WebhookIngestResult struct {
	WebhookLog *model.WebhookLog
	DedupeKey  string
	Enqueued   bool
	Duplicated bool
	Malformed  bool
}

// WebhookIngestService persists a delivery before anything else touches it.
// Processing happens on the worker; a failed enqueue is picked up by the
// sweeper because the log row stays unprocessed.
type WebhookIngestService interface {
	Ingest(ctx context.Context, params WebhookIngestParams) (*WebhookIngestResult, error)
}

type webhookIngestService struct {
	logs    store.WebhookLogStore
	mapper  mapper.EventMapper
	queue   queue.Producer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewWebhookIngestService(logs store.WebhookLogStore, eventMapper mapper.EventMapper, producer queue.Producer, m *metrics.Metrics, log *slog.Logger) WebhookIngestService {
	if log == nil {
		log = slog.Default()
	}
	return &webhookIngestService{
		logs:    logs,
		mapper:  eventMapper,
		queue:   producer,
		metrics: m,
		logger:  log,
	}
}

func (s *webhookIngestService) Ingest(ctx context.Context, params WebhookIngestParams) (*WebhookIngestResult, error) {
	acct, err := model.ParseAccount(params.Account)
	if err != nil {
		return nil, &domain.ConfigurationError{Account: params.Account, Reason: err.Error()}
	}
	if len(params.Body) == 0 {
		return nil, &domain.MalformedPayloadError{Source: "webhook", Reason: "empty body"}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Account: logger.Ptr(string(acct))})

	eventType, externalConvID, eventID, mapErr := s.inspect(ctx, params)
	malformed := mapErr != nil

	entry := &model.WebhookLog{
		ID:                     id.New(),
		Account:                acct,
		EventType:              eventType,
		ExternalConversationID: externalConvID,
		Payload:                params.Body,
		DedupeKey:              computeDedupeKey(acct, eventType, eventID, params.Body),
	}

	stored, created, err := s.logs.CreateOrGet(ctx, entry)
	if err != nil {
		s.metrics.WebhookReceived(string(acct), "error")
		return nil, fmt.Errorf("persisting webhook log: %w", err)
	}

	result := &WebhookIngestResult{
		WebhookLog: stored,
		DedupeKey:  entry.DedupeKey,
		Duplicated: !created,
		Malformed:  malformed,
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{WebhookLogID: &stored.ID, EventType: &stored.EventType})

	switch {
	case !created:
		s.logger.InfoContext(ctx, "duplicate webhook deduped", "dedupe_key", entry.DedupeKey)
		s.metrics.WebhookReceived(string(acct), "duplicate")
		return result, nil
	case malformed:
		if err := s.logs.MarkFailed(ctx, stored.ID, mapErr.Error(), true); err != nil {
			s.logger.ErrorContext(ctx, "failed to flag malformed webhook", "error", err)
		}
		s.logger.WarnContext(ctx, "malformed webhook stored for inspection", "error", mapErr)
		s.metrics.WebhookReceived(string(acct), "malformed")
		return result, nil
	}

	if err := s.queue.Enqueue(ctx, queue.Task{
		TaskType:     queue.TaskTypeWebhook,
		WebhookLogID: stored.ID,
		Account:      string(acct),
		EventType:    stored.EventType,
		TraceID:      params.TraceID,
		Attempt:      1,
	}); err != nil {
		// The row is durable; the sweeper replays it after the grace period.
		s.logger.WarnContext(ctx, "enqueue failed, leaving webhook for sweeper", "error", err)
		s.metrics.WebhookReceived(string(acct), "stored")
		return result, nil
	}

	result.Enqueued = true
	s.metrics.WebhookReceived(string(acct), "accepted")
	return result, nil
}

// inspect maps the event and pulls the ids used for indexing and dedupe.
// A non-nil error means the delivery is kept but never processed.
func (s *webhookIngestService) inspect(ctx context.Context, params WebhookIngestParams) (string, *string, string, error) {
	var body map[string]any
	if err := json.Unmarshal(params.Body, &body); err != nil {
		return unknownEventType, nil, "", &domain.MalformedPayloadError{Source: "webhook", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	var externalConvID *string
	if convID := mapper.ExternalConversationID(body); convID != "" {
		externalConvID = &convID
	}
	eventID := mapper.EventID(body)

	eventType, err := s.mapper.Map(ctx, body, params.Headers)
	if err != nil {
		var malformed *domain.MalformedPayloadError
		if !errors.As(err, &malformed) {
			err = &domain.MalformedPayloadError{Source: "webhook", Field: "event", Reason: err.Error()}
		}
		return unknownEventType, externalConvID, eventID, err
	}
	return string(eventType), externalConvID, eventID, nil
}

func computeDedupeKey(acct model.Account, eventType, eventID string, payload []byte) string {
	if eventID != "" {
		return fmt.Sprintf("%s:%s:%s", acct, eventType, eventID)
	}
	hash := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%s", acct, hex.EncodeToString(hash[:]))
}
