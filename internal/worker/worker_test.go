package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/syncer"
	"eduops.app/relay/internal/worker"
)

type fakeConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	acked    []string
	requeued []string
	dlq      []string
}

func (f *fakeConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeConsumer) Ack(ctx context.Context, msg queue.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, msg.ID)
	return nil
}

func (f *fakeConsumer) Requeue(ctx context.Context, msg queue.Message, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, msg.ID)
	return nil
}

func (f *fakeConsumer) SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dlq = append(f.dlq, msg.ID)
	return nil
}

func (f *fakeConsumer) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type fakeWebhooks struct {
	processFn func(ctx context.Context, event domain.Event) error
	events    []domain.Event
}

func (f *fakeWebhooks) Process(ctx context.Context, event domain.Event) error {
	f.events = append(f.events, event)
	if f.processFn != nil {
		return f.processFn(ctx, event)
	}
	return nil
}

type fakeSyncer struct {
	err     error
	resumed []model.Account
	synced  []model.Account
}

func (f *fakeSyncer) SyncAccount(ctx context.Context, acct model.Account) (*syncer.PassResult, error) {
	f.synced = append(f.synced, acct)
	if f.err != nil {
		return nil, f.err
	}
	return &syncer.PassResult{Account: acct}, nil
}

func (f *fakeSyncer) Resume(acct model.Account) {
	f.resumed = append(f.resumed, acct)
}

func webhookMessage(id string, attempt int) queue.Message {
	logID := int64(500)
	return queue.Message{
		ID:           id,
		TaskType:     queue.TaskTypeWebhook,
		WebhookLogID: &logID,
		Account:      "COMERCIAL",
		EventType:    "conversation_closed",
		Attempt:      attempt,
	}
}

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *fakeConsumer
		webhooks *fakeWebhooks
		syncs    *fakeSyncer
		w        *worker.Worker
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &fakeConsumer{}
		webhooks = &fakeWebhooks{}
		syncs = &fakeSyncer{}
		w = worker.New(consumer, webhooks, syncs, worker.Config{MaxAttempts: 3}, nil)
	})

	It("hands webhook tasks to the processor and acks them", func() {
		Expect(w.Handle(ctx, webhookMessage("1-0", 1))).To(Succeed())

		Expect(webhooks.events).To(HaveLen(1))
		Expect(webhooks.events[0].WebhookLogID).To(Equal(int64(500)))
		Expect(webhooks.events[0].Type).To(Equal(domain.EventConversationClosed))
		Expect(consumer.acked).To(ConsistOf("1-0"))
	})

	It("requeues transient failures until the attempt budget is spent", func() {
		webhooks.processFn = func(ctx context.Context, event domain.Event) error {
			return &domain.TransientError{Account: "COMERCIAL", Op: "list_managers", StatusCode: 502}
		}

		Expect(w.Handle(ctx, webhookMessage("1-0", 1))).NotTo(Succeed())
		Expect(w.Handle(ctx, webhookMessage("2-0", 3))).NotTo(Succeed())

		Expect(consumer.requeued).To(ConsistOf("1-0"))
		Expect(consumer.dlq).To(ConsistOf("2-0"))
		Expect(consumer.acked).To(BeEmpty())
	})

	It("dead-letters failures that cannot succeed on retry", func() {
		webhooks.processFn = func(ctx context.Context, event domain.Event) error {
			return &domain.AuthenticationError{Account: "COMERCIAL", StatusCode: 401}
		}

		Expect(w.Handle(ctx, webhookMessage("1-0", 1))).NotTo(Succeed())
		Expect(consumer.dlq).To(ConsistOf("1-0"))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("recovers from a panicking processor", func() {
		webhooks.processFn = func(ctx context.Context, event domain.Event) error {
			panic("boom")
		}

		Expect(w.Handle(ctx, webhookMessage("1-0", 1))).To(MatchError(ContainSubstring("panic: boom")))
		Expect(consumer.requeued).To(ConsistOf("1-0"))
	})

	It("runs requested sync passes after lifting a suspension", func() {
		syncs.err = &domain.AuthenticationError{Account: "SUPORTE", StatusCode: 403}
		msg := queue.Message{ID: "3-0", TaskType: queue.TaskTypeSyncAccount, Account: "SUPORTE", Attempt: 1}

		Expect(w.Handle(ctx, msg)).To(Succeed())

		Expect(syncs.resumed).To(ConsistOf(model.AccountSuporte))
		Expect(syncs.synced).To(ConsistOf(model.AccountSuporte))
		Expect(consumer.acked).To(ConsistOf("3-0"))
	})

	It("dead-letters sync tasks for unknown accounts", func() {
		msg := queue.Message{ID: "4-0", TaskType: queue.TaskTypeSyncAccount, Account: "MARKETING", Attempt: 1}

		Expect(w.Handle(ctx, msg)).NotTo(Succeed())
		Expect(consumer.dlq).To(ConsistOf("4-0"))
		Expect(syncs.synced).To(BeEmpty())
	})

	It("drains the stream until stopped", func() {
		consumer.batches = [][]queue.Message{{webhookMessage("1-0", 1), webhookMessage("2-0", 1)}}

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		Eventually(consumer.ackedIDs).Should(ConsistOf("1-0", "2-0"))
		w.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})
})

type fakeSweeper struct {
	params service.SweepParams
	n      int
	err    error
}

func (f *fakeSweeper) Sweep(ctx context.Context, params service.SweepParams) (int, error) {
	f.params = params
	return f.n, f.err
}

var _ = Describe("WebhookSweeper", func() {
	It("sweeps logs older than the grace period", func() {
		fs := &fakeSweeper{n: 4}
		sw := worker.NewWebhookSweeper(fs, worker.SweeperConfig{GracePeriod: 5 * time.Minute, BatchSize: 20, MaxAttempts: 7}, nil)

		before := time.Now()
		n, err := sw.SweepOnce(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(4))
		Expect(fs.params.Limit).To(Equal(int32(20)))
		Expect(fs.params.MaxAttempts).To(Equal(int32(7)))
		Expect(fs.params.ReceivedBefore).To(BeTemporally("~", before.Add(-5*time.Minute), time.Second))
	})

	It("reports sweep errors", func() {
		sw := worker.NewWebhookSweeper(&fakeSweeper{err: errors.New("db down")}, worker.SweeperConfig{}, nil)

		_, err := sw.SweepOnce(context.Background())

		Expect(err).To(MatchError("db down"))
	})
})
