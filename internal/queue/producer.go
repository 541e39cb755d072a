package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"task_type": string(task.TaskType),
		"account":   task.Account,
		"attempt":   attempt,
	}
	if task.TaskType == TaskTypeWebhook {
		fields["webhook_log_id"] = task.WebhookLogID
		if task.EventType != "" {
			fields["event_type"] = task.EventType
		}
	}
	if task.TraceID != nil && *task.TraceID != "" {
		fields["trace_id"] = *task.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s task: %w", task.TaskType, err)
	}

	p.logger.InfoContext(ctx, "enqueued task",
		"task_type", task.TaskType,
		"account", task.Account,
		"webhook_log_id", task.WebhookLogID,
		"attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

func validateTask(task Task) error {
	if task.Account == "" {
		return fmt.Errorf("task without account")
	}
	switch task.TaskType {
	case TaskTypeWebhook:
		if task.WebhookLogID == 0 {
			return fmt.Errorf("webhook task without webhook_log_id")
		}
	case TaskTypeSyncAccount:
	default:
		return fmt.Errorf("unknown task_type %q", task.TaskType)
	}
	return nil
}
