package service_test

import (
	"context"
	"sync"
	"time"

	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
)

// memoryConversationStore mimics the unique (account, external_id) index and
// the remote_updated_at compare-and-swap of the SQL store.
type memoryConversationStore struct {
	mu          sync.Mutex
	rows        map[string]model.ConversationRecord
	insertCalls int
	updateCalls int

	// beforeInsert runs before the uniqueness check, letting tests slip in
	// a concurrent writer.
	beforeInsert func()
}

func newMemoryConversationStore() *memoryConversationStore {
	return &memoryConversationStore{rows: map[string]model.ConversationRecord{}}
}

func convKey(acct model.Account, externalID string) string {
	return string(acct) + "/" + externalID
}

func (m *memoryConversationStore) put(rec model.ConversationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[convKey(rec.Account, rec.ExternalID)] = rec
}

func (m *memoryConversationStore) get(acct model.Account, externalID string) (model.ConversationRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[convKey(acct, externalID)]
	return rec, ok
}

func (m *memoryConversationStore) GetByID(ctx context.Context, id int64) (*model.ConversationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.rows {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryConversationStore) GetForUpdate(ctx context.Context, acct model.Account, externalID string) (*model.ConversationRecord, error) {
	rec, ok := m.get(acct, externalID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (m *memoryConversationStore) Insert(ctx context.Context, rec *model.ConversationRecord) (*model.ConversationRecord, bool, error) {
	if m.beforeInsert != nil {
		hook := m.beforeInsert
		m.beforeInsert = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	key := convKey(rec.Account, rec.ExternalID)
	if _, ok := m.rows[key]; ok {
		return nil, false, nil
	}
	m.rows[key] = *rec
	stored := *rec
	return &stored, true, nil
}

func (m *memoryConversationStore) UpdateIfNotStale(ctx context.Context, rec *model.ConversationRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	key := convKey(rec.Account, rec.ExternalID)
	current, ok := m.rows[key]
	if !ok || current.RemoteUpdatedAt.After(rec.RemoteUpdatedAt) {
		return false, nil
	}
	m.rows[key] = *rec
	return true, nil
}

func (m *memoryConversationStore) List(ctx context.Context, filter store.ConversationFilter) ([]model.ConversationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ConversationRecord
	for _, rec := range m.rows {
		if rec.Account != filter.Account {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memoryConversationStore) CountByAccount(ctx context.Context, acct model.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.rows {
		if rec.Account == acct {
			n++
		}
	}
	return n, nil
}

type mockWebhookLogStore struct {
	mu sync.Mutex

	createOrGetFn     func(ctx context.Context, log *model.WebhookLog) (*model.WebhookLog, bool, error)
	getByIDFn         func(ctx context.Context, id int64) (*model.WebhookLog, error)
	listUnprocessedFn func(ctx context.Context, receivedBefore time.Time, maxAttempts, limit int32) ([]model.WebhookLog, error)

	processed map[int64]*int64
	failed    map[int64]string
	malformed map[int64]bool
	reset     []int64
	created   []*model.WebhookLog
}

func newMockWebhookLogStore() *mockWebhookLogStore {
	return &mockWebhookLogStore{
		processed: map[int64]*int64{},
		failed:    map[int64]string{},
		malformed: map[int64]bool{},
	}
}

func (m *mockWebhookLogStore) CreateOrGet(ctx context.Context, log *model.WebhookLog) (*model.WebhookLog, bool, error) {
	m.mu.Lock()
	m.created = append(m.created, log)
	m.mu.Unlock()
	if m.createOrGetFn != nil {
		return m.createOrGetFn(ctx, log)
	}
	return log, true, nil
}

func (m *mockWebhookLogStore) GetByID(ctx context.Context, id int64) (*model.WebhookLog, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockWebhookLogStore) MarkProcessed(ctx context.Context, id int64, conversationID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[id] = conversationID
	return nil
}

func (m *mockWebhookLogStore) MarkFailed(ctx context.Context, id int64, errMsg string, malformed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = errMsg
	m.malformed[id] = malformed
	return nil
}

func (m *mockWebhookLogStore) ResetAttempts(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset = append(m.reset, id)
	return nil
}

func (m *mockWebhookLogStore) ListUnprocessed(ctx context.Context, receivedBefore time.Time, maxAttempts, limit int32) ([]model.WebhookLog, error) {
	if m.listUnprocessedFn != nil {
		return m.listUnprocessedFn(ctx, receivedBefore, maxAttempts, limit)
	}
	return nil, nil
}

func (m *mockWebhookLogStore) isProcessed(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[id]
	return ok
}

type mockSyncStateStore struct {
	listFn func(ctx context.Context) ([]model.AccountSyncState, error)
}

func (m *mockSyncStateStore) MarkStarted(ctx context.Context, acct model.Account) error {
	return nil
}

func (m *mockSyncStateStore) MarkSucceeded(ctx context.Context, acct model.Account) error {
	return nil
}

func (m *mockSyncStateStore) MarkFailed(ctx context.Context, acct model.Account, errMsg string, suspended bool) error {
	return nil
}

func (m *mockSyncStateStore) List(ctx context.Context) ([]model.AccountSyncState, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockStoreProvider struct {
	conversations store.ConversationStore
	webhookLogs   store.WebhookLogStore
	syncStates    store.SyncStateStore
}

func (m *mockStoreProvider) Conversations() store.ConversationStore {
	return m.conversations
}

func (m *mockStoreProvider) WebhookLogs() store.WebhookLogStore {
	return m.webhookLogs
}

func (m *mockStoreProvider) SyncStates() store.SyncStateStore {
	return m.syncStates
}

// serialTxRunner runs one transaction at a time, which is what the row lock
// gives two writers touching the same conversation.
type serialTxRunner struct {
	mu       sync.Mutex
	provider service.StoreProvider
	calls    int
	err      error
}

func (r *serialTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	return fn(r.provider)
}

type mockProducer struct {
	mu        sync.Mutex
	enqueueFn func(ctx context.Context, task queue.Task) error
	tasks     []queue.Task
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.Task) error {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockManagerLookup struct {
	managersFn func(ctx context.Context, acct model.Account) ([]model.Manager, error)
	calls      int
}

func (m *mockManagerLookup) Managers(ctx context.Context, acct model.Account) ([]model.Manager, error) {
	m.calls++
	if m.managersFn != nil {
		return m.managersFn(ctx, acct)
	}
	return nil, nil
}

type mockConversationService struct {
	mergeFn func(ctx context.Context, snap model.ConversationSnapshot, source service.MergeSource) (*service.MergeResult, error)
	snaps   []model.ConversationSnapshot
}

func (m *mockConversationService) Merge(ctx context.Context, snap model.ConversationSnapshot, source service.MergeSource) (*service.MergeResult, error) {
	m.snaps = append(m.snaps, snap)
	if m.mergeFn != nil {
		return m.mergeFn(ctx, snap, source)
	}
	return &service.MergeResult{Outcome: model.MergeInserted}, nil
}

func transientErr(acct model.Account) error {
	return &domain.TransientError{Account: string(acct), Op: "list_managers", StatusCode: 503}
}
