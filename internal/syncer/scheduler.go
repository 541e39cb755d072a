package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"eduops.app/relay/internal/model"
)

// AccountSyncer is what the scheduler drives; *Synchronizer implements it.
type AccountSyncer interface {
	SyncAccount(ctx context.Context, acct model.Account) (*PassResult, error)
}

// Scheduler polls every account on its own ticker. Accounts run in
// parallel and a failing account never delays the other.
type Scheduler struct {
	syncer   AccountSyncer
	accounts []model.Account
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(s AccountSyncer, accounts []model.Account, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{syncer: s, accounts: accounts, interval: interval, logger: log}
}

// Run blocks until ctx is cancelled. The first pass of each account starts
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, acct := range s.accounts {
		g.Go(func() error {
			s.loop(ctx, acct)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, acct model.Account) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "poll loop started", "account", string(acct), "interval", s.interval)
	for {
		s.tick(ctx, acct)
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "poll loop stopped", "account", string(acct))
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, acct model.Account) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.syncer.SyncAccount(ctx, acct)
	switch {
	case err == nil, errors.Is(err, ErrSuspended):
	case errors.Is(err, context.Canceled):
	default:
		// Already logged by the pass; the next tick retries.
		s.logger.DebugContext(ctx, "poll tick failed", "account", string(acct), "error", err)
	}
}
