package syncer_test

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/syncer"
)

type page[T any] struct {
	items []T
	err   error
}

func seq[T any](pages ...page[T]) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for _, p := range pages {
			if !yield(p.items, p.err) {
				return
			}
		}
	}
}

type fakeRemote struct {
	managersFn      func(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error]
	subscribersFn   func(ctx context.Context, acct model.Account) iter.Seq2[[]model.Subscriber, error]
	conversationsFn func(ctx context.Context, acct model.Account) iter.Seq2[[]model.RemoteConversation, error]
	managerCalls    atomic.Int32
}

func (f *fakeRemote) ListManagers(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error] {
	f.managerCalls.Add(1)
	if f.managersFn != nil {
		return f.managersFn(ctx, acct)
	}
	return seq[model.Manager]()
}

func (f *fakeRemote) ListSubscribers(ctx context.Context, acct model.Account) iter.Seq2[[]model.Subscriber, error] {
	if f.subscribersFn != nil {
		return f.subscribersFn(ctx, acct)
	}
	return seq[model.Subscriber]()
}

func (f *fakeRemote) ListConversations(ctx context.Context, acct model.Account) iter.Seq2[[]model.RemoteConversation, error] {
	if f.conversationsFn != nil {
		return f.conversationsFn(ctx, acct)
	}
	return seq[model.RemoteConversation]()
}

type fakePrimer struct {
	mu     sync.Mutex
	primed map[model.Account][]model.Manager
}

func (f *fakePrimer) Prime(acct model.Account, managers []model.Manager) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primed == nil {
		f.primed = map[model.Account][]model.Manager{}
	}
	f.primed[acct] = managers
}

// fakeConversations answers like the real service for repeated snapshots:
// the first sighting inserts, an identical one is unchanged.
type fakeConversations struct {
	mu      sync.Mutex
	seen    map[string]model.ConversationSnapshot
	snaps   []model.ConversationSnapshot
	mergeFn func(ctx context.Context, snap model.ConversationSnapshot) error
}

func (f *fakeConversations) Merge(ctx context.Context, snap model.ConversationSnapshot, source service.MergeSource) (*service.MergeResult, error) {
	if f.mergeFn != nil {
		if err := f.mergeFn(ctx, snap); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]model.ConversationSnapshot{}
	}
	f.snaps = append(f.snaps, snap)
	key := string(snap.Account) + "/" + snap.ExternalID
	prev, ok := f.seen[key]
	f.seen[key] = snap
	switch {
	case !ok:
		return &service.MergeResult{Outcome: model.MergeInserted}, nil
	case prev.RemoteUpdatedAt.Equal(snap.RemoteUpdatedAt):
		return &service.MergeResult{Outcome: model.MergeUnchanged}, nil
	case snap.RemoteUpdatedAt.Before(prev.RemoteUpdatedAt):
		f.seen[key] = prev
		return &service.MergeResult{Outcome: model.MergeStale}, nil
	}
	return &service.MergeResult{Outcome: model.MergeUpdated}, nil
}

func (f *fakeConversations) merged() []model.ConversationSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ConversationSnapshot(nil), f.snaps...)
}

type stateCall struct {
	kind      string
	account   model.Account
	errMsg    string
	suspended bool
}

type fakeSyncStates struct {
	mu    sync.Mutex
	calls []stateCall
}

func (f *fakeSyncStates) record(c stateCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeSyncStates) MarkStarted(ctx context.Context, acct model.Account) error {
	f.record(stateCall{kind: "started", account: acct})
	return nil
}

func (f *fakeSyncStates) MarkSucceeded(ctx context.Context, acct model.Account) error {
	f.record(stateCall{kind: "succeeded", account: acct})
	return nil
}

func (f *fakeSyncStates) MarkFailed(ctx context.Context, acct model.Account, errMsg string, suspended bool) error {
	f.record(stateCall{kind: "failed", account: acct, errMsg: errMsg, suspended: suspended})
	return nil
}

func (f *fakeSyncStates) List(ctx context.Context) ([]model.AccountSyncState, error) {
	return nil, nil
}

func (f *fakeSyncStates) last() stateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return stateCall{}
	}
	return f.calls[len(f.calls)-1]
}

type fakeLocker struct {
	held bool
	// loseAfter > 0 makes every extend past that count report a lost lock.
	loseAfter int32
	extended  atomic.Int32
	released  atomic.Int32
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (syncer.Lease, bool, error) {
	if f.held {
		return nil, false, nil
	}
	return fakeLease{f}, true, nil
}

type fakeLease struct {
	locker *fakeLocker
}

func (l fakeLease) Extend(context.Context) error {
	n := l.locker.extended.Add(1)
	if l.locker.loseAfter > 0 && n > l.locker.loseAfter {
		return syncer.ErrLockLost
	}
	return nil
}

func (l fakeLease) Release(context.Context) error {
	l.locker.released.Add(1)
	return nil
}
