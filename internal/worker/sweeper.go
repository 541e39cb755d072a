package worker

import (
	"context"
	"log/slog"
	"time"

	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/service"
)

type SweeperConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int32
	MaxAttempts int32
}

// WebhookSweeper replays webhook logs still unprocessed after the grace
// period, covering lost enqueues and messages that exhausted their stream
// retries while the cause was transient.
type WebhookSweeper struct {
	sweeper Sweeper
	cfg     SweeperConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewWebhookSweeper(sweeper Sweeper, cfg SweeperConfig, log *slog.Logger) *WebhookSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookSweeper{sweeper: sweeper, cfg: cfg, logger: log, now: time.Now}
}

// Run blocks until ctx is cancelled.
func (s *WebhookSweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.worker.sweeper"})

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "webhook sweeper started",
		"interval", s.cfg.Interval,
		"grace_period", s.cfg.GracePeriod)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "sweep cycle error", "error", err)
			}
		}
	}
}

func (s *WebhookSweeper) SweepOnce(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx, service.SweepParams{
		ReceivedBefore: s.now().Add(-s.cfg.GracePeriod),
		MaxAttempts:    s.cfg.MaxAttempts,
		Limit:          s.cfg.BatchSize,
	})
}
