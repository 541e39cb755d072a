package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"eduops.app/relay/common/id"
	"eduops.app/relay/common/logger"
	"eduops.app/relay/common/otel"
	"eduops.app/relay/core/config"
	"eduops.app/relay/core/db"
	"eduops.app/relay/internal/account"
	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/remote"
	"eduops.app/relay/internal/resolver"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
	"eduops.app/relay/internal/syncer"
	"eduops.app/relay/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "relay worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer,
		"poll_interval", cfg.Sync.PollInterval)

	if err := id.Init(id.NodeWorker); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	accounts, err := account.NewRouter(cfg.Accounts)
	if err != nil {
		slog.ErrorContext(ctx, "invalid account configuration", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	// Closing the producer closes the Redis client.
	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RequeueDelay: time.Second,
	}, slog.Default())
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	rc, err := remote.New(accounts, remote.Config{
		Timeout:     cfg.Remote.Timeout,
		BackoffBase: cfg.Remote.BackoffBase,
		BackoffMax:  cfg.Remote.BackoffMax,
		MaxAttempts: cfg.Remote.MaxAttempts,
		RatePerSec:  cfg.Remote.RatePerSec,
		RateBurst:   cfg.Remote.RateBurst,
		PageSize:    cfg.Remote.PageSize,
	}, m, slog.Default())
	if err != nil {
		slog.ErrorContext(ctx, "failed to create remote client", "error", err)
		os.Exit(1)
	}
	managers := remote.NewManagerDirectory(rc, cfg.Remote.ManagerTTL, slog.Default())

	stores := store.NewStores(database.Queries())
	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		producer,
		m,
		accounts.Accounts(),
		cfg.Sync,
		slog.Default(),
	)

	synchronizer := syncer.New(
		rc,
		managers,
		services.Conversations(),
		stores.SyncStates(),
		resolver.New(slog.Default(), nil),
		syncer.NewRedisLocker(redisClient, ""),
		m,
		syncer.Config{LockTTL: cfg.Sync.LockTTL, AuthRetryInterval: cfg.Sync.AuthRetryInterval},
		slog.Default(),
	)
	scheduler := syncer.NewScheduler(synchronizer, accounts.Accounts(), cfg.Sync.PollInterval, slog.Default())

	w := worker.New(consumer, services.WebhookProcessor(managers), synchronizer, worker.Config{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	}, slog.Default())

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.Handle, slog.Default())

	sweeper := worker.NewWebhookSweeper(services.Replay(), worker.SweeperConfig{
		Interval:    cfg.Webhook.SweepInterval,
		GracePeriod: cfg.Webhook.GracePeriod,
		BatchSize:   cfg.Webhook.SweepBatch,
		MaxAttempts: cfg.Webhook.MaxAttempts,
	}, slog.Default())

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsMux(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		reclaimer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		slog.InfoContext(ctx, "metrics server starting", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	slog.InfoContext(ctx, "worker initialized and running", "accounts", accounts.Accounts())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-gctx.Done():
		slog.ErrorContext(ctx, "worker component exited early")
	}

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Let in-flight messages finish before the context goes away; sync
	// passes stop between conversations once it does.
	reclaimer.Stop()
	w.Stop()
	cancelRun()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "metrics server shutdown error", "error", err)
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-done:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

const banner = `
██████╗ ███████╗██╗      █████╗ ██╗   ██╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██████╔╝█████╗  ██║     ███████║ ╚████╔╝     ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝      ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║  ██║███████╗███████╗██║  ██║   ██║       ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝        ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
