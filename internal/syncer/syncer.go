package syncer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/remote"
	"eduops.app/relay/internal/resolver"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
)

// ErrSuspended is returned while an account waits out an authentication failure.
var ErrSuspended = errors.New("account sync suspended after authentication failure")

// Remote is the slice of remote.Client a pass needs.
type Remote interface {
	ListManagers(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error]
	ListSubscribers(ctx context.Context, acct model.Account) iter.Seq2[[]model.Subscriber, error]
	ListConversations(ctx context.Context, acct model.Account) iter.Seq2[[]model.RemoteConversation, error]
}

// ManagerPrimer receives the fresh manager list of every pass.
type ManagerPrimer interface {
	Prime(acct model.Account, managers []model.Manager)
}

type Config struct {
	LockTTL           time.Duration
	AuthRetryInterval time.Duration
}

// PassResult summarizes one sync pass.
type PassResult struct {
	Account       model.Account
	Managers      int
	Subscribers   int
	Conversations int
	Inserted      int
	Updated       int
	Unchanged     int
	Stale         int
	Failed        int
	PagesSkipped  int
	// Skipped is set when another replica held the account lock.
	Skipped bool
}

// Synchronizer runs poll passes. At most one pass per account runs in this
// process; concurrent callers for the same account share its result.
type Synchronizer struct {
	remote        Remote
	managers      ManagerPrimer
	conversations service.ConversationService
	syncStates    store.SyncStateStore
	resolver      *resolver.Resolver
	locker        Locker
	metrics       *metrics.Metrics
	logger        *slog.Logger
	cfg           Config
	now           func() time.Time

	flight singleflight.Group

	mu             sync.Mutex
	suspendedUntil map[model.Account]time.Time
}

func New(
	rc Remote,
	managers ManagerPrimer,
	conversations service.ConversationService,
	syncStates store.SyncStateStore,
	res *resolver.Resolver,
	locker Locker,
	m *metrics.Metrics,
	cfg Config,
	log *slog.Logger,
) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	if res == nil {
		res = resolver.New(log, nil)
	}
	if locker == nil {
		locker = noopLocker{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.AuthRetryInterval <= 0 {
		cfg.AuthRetryInterval = 30 * time.Minute
	}
	return &Synchronizer{
		remote:         rc,
		managers:       managers,
		conversations:  conversations,
		syncStates:     syncStates,
		resolver:       res,
		locker:         locker,
		metrics:        m,
		logger:         log,
		cfg:            cfg,
		now:            time.Now,
		suspendedUntil: map[model.Account]time.Time{},
	}
}

// SyncAccount runs one pass for acct, or joins the pass already running.
func (s *Synchronizer) SyncAccount(ctx context.Context, acct model.Account) (*PassResult, error) {
	if !acct.Valid() {
		return nil, &domain.ConfigurationError{Account: string(acct), Reason: "unknown account"}
	}
	if until, ok := s.suspension(acct); ok {
		s.logger.DebugContext(ctx, "sync suspended", "account", string(acct), "until", until)
		return nil, ErrSuspended
	}

	v, err, shared := s.flight.Do(string(acct), func() (any, error) {
		return s.lockedPass(ctx, acct)
	})
	if shared {
		s.logger.DebugContext(ctx, "joined running sync pass", "account", string(acct))
	}
	if v == nil {
		return nil, err
	}
	return v.(*PassResult), err
}

// Resume lifts an authentication suspension, typically after credentials
// were rotated.
func (s *Synchronizer) Resume(acct model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.suspendedUntil, acct)
}

func (s *Synchronizer) suspension(acct model.Account) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.suspendedUntil[acct]
	if !ok {
		return time.Time{}, false
	}
	if !s.now().Before(until) {
		// Time to probe the credentials again.
		delete(s.suspendedUntil, acct)
		return time.Time{}, false
	}
	return until, true
}

func (s *Synchronizer) suspend(acct model.Account) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	until := s.now().Add(s.cfg.AuthRetryInterval)
	s.suspendedUntil[acct] = until
	return until
}

func (s *Synchronizer) lockedPass(ctx context.Context, acct model.Account) (*PassResult, error) {
	lease, acquired, err := s.locker.Acquire(ctx, string(acct), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.logger.InfoContext(ctx, "sync pass running on another replica", "account", string(acct))
		s.metrics.SyncPass(string(acct), "skipped", 0)
		return &PassResult{Account: acct, Skipped: true}, nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release sync lock", "account", string(acct), "error", err)
		}
	}()

	return s.pass(ctx, acct, lease)
}

func (s *Synchronizer) pass(ctx context.Context, acct model.Account, lease Lease) (*PassResult, error) {
	sc := logger.StartSpan(ctx, "syncer.pass")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		Account:   logger.Ptr(string(acct)),
		Component: "relay.syncer",
	})

	start := s.now()
	result := &PassResult{Account: acct}

	if err := s.syncStates.MarkStarted(ctx, acct); err != nil {
		s.logger.WarnContext(ctx, "failed to record pass start", "error", err)
	}

	err := s.run(ctx, acct, lease, result)
	elapsed := s.now().Sub(start)
	if err != nil {
		sc.RecordError(err)
		return result, s.fail(ctx, acct, err, elapsed)
	}

	if err := s.syncStates.MarkSucceeded(ctx, acct); err != nil {
		s.logger.WarnContext(ctx, "failed to record pass success", "error", err)
	}
	s.metrics.SyncPass(string(acct), "success", elapsed)
	s.logger.InfoContext(ctx, "sync pass finished",
		"conversations", result.Conversations,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"stale", result.Stale,
		"failed", result.Failed,
		"pages_skipped", result.PagesSkipped,
		"duration_ms", elapsed.Milliseconds())
	return result, nil
}

func (s *Synchronizer) fail(ctx context.Context, acct model.Account, err error, elapsed time.Duration) error {
	outcome := "failed"
	suspended := false
	if domain.IsAuthentication(err) {
		until := s.suspend(acct)
		suspended = true
		outcome = "suspended"
		s.logger.ErrorContext(ctx, "remote rejected credentials, suspending account sync",
			"error", err,
			"retry_at", until)
	} else {
		s.logger.ErrorContext(ctx, "sync pass failed", "error", err)
	}

	if markErr := s.syncStates.MarkFailed(context.WithoutCancel(ctx), acct, logger.Truncate(err.Error(), 1000), suspended); markErr != nil {
		s.logger.WarnContext(ctx, "failed to record pass failure", "error", markErr)
	}
	s.metrics.SyncPass(string(acct), outcome, elapsed)
	return err
}

func (s *Synchronizer) run(ctx context.Context, acct model.Account, lease Lease, result *PassResult) error {
	// Without the manager list attendants cannot be resolved, so the pass
	// stops rather than writing rows that look unassigned.
	managers, err := remote.Collect(s.remote.ListManagers(ctx, acct))
	if err != nil {
		return fmt.Errorf("listing managers: %w", err)
	}
	result.Managers = len(managers)
	if s.managers != nil {
		s.managers.Prime(acct, managers)
	}

	subscribers := map[model.RemoteID]*model.Subscriber{}
	for page, err := range s.remote.ListSubscribers(ctx, acct) {
		if err := s.renew(ctx, lease); err != nil {
			return err
		}
		if err != nil {
			if stop := s.pageError(ctx, "subscribers", err, result); stop != nil {
				return stop
			}
			continue
		}
		for i := range page {
			subscribers[page[i].ID] = &page[i]
		}
	}
	result.Subscribers = len(subscribers)

	for page, err := range s.remote.ListConversations(ctx, acct) {
		if err := s.renew(ctx, lease); err != nil {
			return err
		}
		if err != nil {
			if stop := s.pageError(ctx, "conversations", err, result); stop != nil {
				return stop
			}
			continue
		}
		for _, conv := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Conversations++
			s.mergeOne(ctx, acct, conv, subscribers, managers, result)
		}
	}
	return ctx.Err()
}

// renew extends the lock before each page so a long pass keeps it. Only a
// lost lock stops the pass; a failed extend call is retried on the next page.
func (s *Synchronizer) renew(ctx context.Context, lease Lease) error {
	err := lease.Extend(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLockLost):
		return err
	default:
		s.logger.WarnContext(ctx, "failed to extend sync lock", "error", err)
		return nil
	}
}

// pageError returns non-nil when the pass must stop. Transient and
// malformed pages are skipped and picked up by the next pass.
func (s *Synchronizer) pageError(ctx context.Context, listing string, err error, result *PassResult) error {
	if domain.IsAuthentication(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("listing %s: %w", listing, err)
	}
	result.PagesSkipped++
	s.logger.WarnContext(ctx, "skipping page", "listing", listing, "error", err)
	return nil
}

func (s *Synchronizer) mergeOne(ctx context.Context, acct model.Account, conv model.RemoteConversation, subscribers map[model.RemoteID]*model.Subscriber, managers []model.Manager, result *PassResult) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ConversationID: logger.Ptr(conv.ID.String())})

	if err := conv.Validate(); err != nil {
		result.Failed++
		s.logger.WarnContext(ctx, "skipping malformed conversation", "error", err)
		return
	}

	sub := subscribers[conv.SubscriberID]
	if sub == nil && conv.Subscriber != nil {
		sub = conv.Subscriber
	}

	var attendant *model.Manager
	if sub != nil {
		attendant = s.resolver.Manager(ctx, *sub, acct, managers)
	}

	res, err := s.conversations.Merge(ctx, service.SnapshotFromRemote(conv, sub, attendant), service.SourcePoll)
	if err != nil {
		result.Failed++
		s.logger.ErrorContext(ctx, "conversation merge failed", "error", err)
		return
	}
	switch res.Outcome {
	case model.MergeInserted:
		result.Inserted++
	case model.MergeUpdated:
		result.Updated++
	case model.MergeUnchanged:
		result.Unchanged++
	case model.MergeStale:
		result.Stale++
	}
}
