package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
)

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer  Consumer
	webhooks  WebhookProcessor
	syncer    AccountSyncer
	cfg       Config
	logger    *slog.Logger
	readPause time.Duration

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, webhooks WebhookProcessor, syncer AccountSyncer, cfg Config, log *slog.Logger) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		consumer:  consumer,
		webhooks:  webhooks,
		syncer:    syncer,
		cfg:       cfg,
		logger:    log,
		readPause: time.Second,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.worker"})
	w.logger.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			w.logger.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(w.readPause)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		_ = w.Handle(ctx, msg)
	}

	return nil
}

// Handle processes msg and applies the retry policy when it fails. The
// reclaimer hands claimed messages here.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	err := w.processMessageSafe(ctx, msg)
	if err == nil {
		return nil
	}
	w.logger.ErrorContext(ctx, "message processing failed",
		"error", err,
		"message_id", msg.ID,
		"task_type", string(msg.TaskType),
		"account", msg.Account)
	w.handleFailedMessage(ctx, msg, err)
	return err
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage handles one stream message and acks it on success.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker."+string(msg.TaskType))
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		Account:      logger.Ptr(msg.Account),
		MessageID:    logger.Ptr(msg.ID),
		WebhookLogID: msg.WebhookLogID,
	})

	w.logger.InfoContext(ctx, "processing message",
		"task_type", string(msg.TaskType),
		"attempt", msg.Attempt)

	var err error
	switch msg.TaskType {
	case queue.TaskTypeWebhook:
		err = w.processWebhook(ctx, msg)
	case queue.TaskTypeSyncAccount:
		err = w.processSync(ctx, msg)
	default:
		err = &domain.MalformedPayloadError{Source: "queue", Field: "task_type", Reason: fmt.Sprintf("unknown task type %q", msg.TaskType)}
	}
	if err != nil {
		sc.RecordError(err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Log but don't fail - message will be reclaimed but that's safe
		w.logger.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

func (w *Worker) processWebhook(ctx context.Context, msg queue.Message) error {
	if msg.WebhookLogID == nil {
		return &domain.MalformedPayloadError{Source: "queue", Field: "webhook_log_id", Reason: "required"}
	}
	var traceID *string
	if msg.TraceID != "" {
		traceID = &msg.TraceID
	}
	return w.webhooks.Process(ctx, domain.Event{
		WebhookLogID: *msg.WebhookLogID,
		Account:      msg.Account,
		Type:         domain.EventType(msg.EventType),
		TraceID:      traceID,
		Attempt:      msg.Attempt,
	})
}

// processSync runs a requested pass. The pass records its own failure in the
// sync state table, so only an unusable request is reported back.
func (w *Worker) processSync(ctx context.Context, msg queue.Message) error {
	acct, err := model.ParseAccount(msg.Account)
	if err != nil {
		return &domain.ConfigurationError{Account: msg.Account, Reason: err.Error()}
	}

	// A manual request doubles as a credentials probe.
	w.syncer.Resume(acct)
	res, err := w.syncer.SyncAccount(ctx, acct)
	if err != nil {
		w.logger.WarnContext(ctx, "requested sync pass failed", "error", err)
		return nil
	}
	w.logger.InfoContext(ctx, "requested sync pass done",
		"conversations", res.Conversations,
		"skipped", res.Skipped)
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if errors.Is(err, context.Canceled) {
		// Left pending; the reclaimer picks it up after a restart.
		return
	}
	if !domain.IsRetryable(err) {
		w.logger.ErrorContext(ctx, "non-retryable failure, sending to DLQ",
			"message_id", msg.ID,
			"error", err)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			w.logger.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	if msg.Attempt >= w.cfg.MaxAttempts {
		w.logger.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			w.logger.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	w.logger.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		w.logger.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
