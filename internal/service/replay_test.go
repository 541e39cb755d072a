package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
)

var _ = Describe("ReplayService", func() {
	var (
		ctx      context.Context
		logs     *mockWebhookLogStore
		producer *mockProducer
		svc      service.ReplayService
	)

	BeforeEach(func() {
		ctx = context.Background()
		logs = newMockWebhookLogStore()
		producer = &mockProducer{}
		svc = service.NewReplayService(logs, producer, nil, nil)
	})

	Describe("Replay", func() {
		It("re-enqueues an unprocessed log with a fresh attempt budget", func() {
			logs.getByIDFn = func(ctx context.Context, id int64) (*model.WebhookLog, error) {
				return &model.WebhookLog{ID: id, Account: model.AccountSuporte, EventType: "message_received", Attempts: 2}, nil
			}

			_, err := svc.Replay(ctx, 31)

			Expect(err).NotTo(HaveOccurred())
			Expect(logs.reset).To(Equal([]int64{31}))
			Expect(producer.tasks).To(ConsistOf(queue.Task{
				TaskType:     queue.TaskTypeWebhook,
				WebhookLogID: 31,
				Account:      "SUPORTE",
				EventType:    "message_received",
				Attempt:      1,
			}))
		})

		It("makes a log past the sweep cap sweepable again", func() {
			logs.getByIDFn = func(ctx context.Context, id int64) (*model.WebhookLog, error) {
				return &model.WebhookLog{ID: id, Account: model.AccountComercial, EventType: "message_sent", Attempts: 10}, nil
			}

			entry, err := svc.Replay(ctx, 8)

			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Attempts).To(BeZero())
			Expect(logs.reset).To(ConsistOf(int64(8)))
		})

		It("refuses processed, malformed and missing logs", func() {
			logs.getByIDFn = func(ctx context.Context, id int64) (*model.WebhookLog, error) {
				switch id {
				case 1:
					return &model.WebhookLog{ID: 1, Account: model.AccountSuporte, Processed: true}, nil
				case 2:
					return &model.WebhookLog{ID: 2, Account: model.AccountSuporte, Malformed: true}, nil
				}
				return nil, store.ErrNotFound
			}

			_, err := svc.Replay(ctx, 1)
			Expect(err).To(MatchError(service.ErrWebhookAlreadyDone))
			_, err = svc.Replay(ctx, 2)
			Expect(err).To(MatchError(service.ErrWebhookLogMalformed))
			_, err = svc.Replay(ctx, 3)
			Expect(err).To(MatchError(service.ErrWebhookLogNotFound))
			Expect(producer.tasks).To(BeEmpty())
		})
	})

	Describe("Sweep", func() {
		It("enqueues every unprocessed log and skips enqueue failures", func() {
			cutoff := time.Now().Add(-2 * time.Minute)
			logs.listUnprocessedFn = func(ctx context.Context, receivedBefore time.Time, maxAttempts, limit int32) ([]model.WebhookLog, error) {
				Expect(receivedBefore).To(Equal(cutoff))
				Expect(maxAttempts).To(Equal(int32(10)))
				Expect(limit).To(Equal(int32(50)))
				return []model.WebhookLog{
					{ID: 1, Account: model.AccountComercial, EventType: "message_sent"},
					{ID: 2, Account: model.AccountComercial, EventType: "message_sent"},
					{ID: 3, Account: model.AccountSuporte, EventType: "conversation_closed"},
				}, nil
			}
			producer.enqueueFn = func(ctx context.Context, task queue.Task) error {
				if task.WebhookLogID == 2 {
					return errors.New("stream full")
				}
				return nil
			}

			n, err := svc.Sweep(ctx, service.SweepParams{ReceivedBefore: cutoff, MaxAttempts: 10, Limit: 50})

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(producer.tasks).To(HaveLen(3))
		})
	})

	Describe("RequestSync", func() {
		It("queues a sync task for a known account", func() {
			Expect(svc.RequestSync(ctx, model.AccountComercial)).To(Succeed())
			Expect(producer.tasks).To(ConsistOf(queue.Task{TaskType: queue.TaskTypeSyncAccount, Account: "COMERCIAL", Attempt: 1}))
		})

		It("rejects unknown accounts", func() {
			Expect(svc.RequestSync(ctx, "MARKETING")).NotTo(Succeed())
		})
	})
})
