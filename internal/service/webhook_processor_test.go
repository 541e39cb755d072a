package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
)

var _ = Describe("WebhookProcessor", func() {
	var (
		ctx       context.Context
		logs      *mockWebhookLogStore
		convs     *mockConversationService
		managers  *mockManagerLookup
		processor service.WebhookProcessor
		entry     *model.WebhookLog
	)

	BeforeEach(func() {
		ctx = context.Background()
		logs = newMockWebhookLogStore()
		convs = &mockConversationService{}
		managers = &mockManagerLookup{}
		processor = service.NewWebhookProcessor(logs, convs, managers, nil, nil, nil)

		entry = &model.WebhookLog{
			ID:        900,
			Account:   model.AccountComercial,
			EventType: string(domain.EventConversationAssigned),
			Payload: []byte(`{
				"event": "chat.assigned",
				"conversation": {"id": "c-1", "updated_at": "2025-03-10T10:00:00Z"},
				"subscriber": {"id": "s-1", "phone": "+5516997510930", "custom_fields": {"Atendente Email": "joana@escola.com"}}
			}`),
		}
		logs.getByIDFn = func(ctx context.Context, id int64) (*model.WebhookLog, error) {
			if id == entry.ID {
				return entry, nil
			}
			return nil, store.ErrNotFound
		}
	})

	It("resolves the attendant within the log's account and merges", func() {
		managers.managersFn = func(ctx context.Context, acct model.Account) ([]model.Manager, error) {
			Expect(acct).To(Equal(model.AccountComercial))
			return []model.Manager{
				{ID: "m-9", FullName: "Joana", Email: "joana@escola.com", AssignChat: 1, Account: model.AccountComercial},
			}, nil
		}

		err := processor.Process(ctx, domain.Event{WebhookLogID: 900, Attempt: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(convs.snaps).To(HaveLen(1))
		snap := convs.snaps[0]
		Expect(snap.ExternalID).To(Equal("c-1"))
		Expect(snap.WebhookLogID).To(HaveValue(Equal(int64(900))))
		Expect(snap.Attendant).NotTo(BeNil())
		Expect(snap.Attendant.ID).To(Equal(model.RemoteID("m-9")))
		Expect(snap.Signals.Assigned).To(BeTrue())
	})

	It("skips logs that are already processed", func() {
		entry.Processed = true

		Expect(processor.Process(ctx, domain.Event{WebhookLogID: 900})).To(Succeed())
		Expect(convs.snaps).To(BeEmpty())
		Expect(managers.calls).To(BeZero())
	})

	It("drops tasks whose log is gone", func() {
		Expect(processor.Process(ctx, domain.Event{WebhookLogID: 1})).To(Succeed())
	})

	It("flags malformed payloads and reports success", func() {
		entry.Payload = []byte(`{"event":"chat.assigned","conversation":{"id":"c-1","updated_at":"2025-03-10T10:00:00Z"}}`)

		Expect(processor.Process(ctx, domain.Event{WebhookLogID: 900})).To(Succeed())
		Expect(logs.malformed).To(HaveKeyWithValue(int64(900), true))
		Expect(logs.isProcessed(900)).To(BeFalse())
		Expect(convs.snaps).To(BeEmpty())
	})

	It("settles subscriber updates that carry no conversation", func() {
		entry.EventType = string(domain.EventSubscriberUpdated)
		entry.Payload = []byte(`{"event":"contact.updated","subscriber":{"id":"s-1"}}`)

		Expect(processor.Process(ctx, domain.Event{WebhookLogID: 900})).To(Succeed())
		Expect(logs.isProcessed(900)).To(BeTrue())
		Expect(convs.snaps).To(BeEmpty())
	})

	It("records transient failures and returns them for redelivery", func() {
		managers.managersFn = func(ctx context.Context, acct model.Account) ([]model.Manager, error) {
			return nil, transientErr(acct)
		}

		err := processor.Process(ctx, domain.Event{WebhookLogID: 900})

		Expect(domain.IsRetryable(err)).To(BeTrue())
		Expect(logs.failed).To(HaveKey(int64(900)))
		Expect(logs.malformed[900]).To(BeFalse())
		Expect(logs.isProcessed(900)).To(BeFalse())
	})

	It("returns merge failures without marking the log processed", func() {
		convs.mergeFn = func(ctx context.Context, snap model.ConversationSnapshot, source service.MergeSource) (*service.MergeResult, error) {
			Expect(source).To(Equal(service.SourceWebhook))
			return nil, errors.New("deadlock detected")
		}

		err := processor.Process(ctx, domain.Event{WebhookLogID: 900})

		Expect(err).To(MatchError("deadlock detected"))
		Expect(logs.failed[900]).To(Equal("deadlock detected"))
	})
})
