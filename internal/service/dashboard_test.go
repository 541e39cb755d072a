package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
)

var _ = Describe("DashboardService", func() {
	var (
		ctx    context.Context
		convs  *memoryConversationStore
		states *mockSyncStateStore
		svc    service.DashboardService
	)

	BeforeEach(func() {
		ctx = context.Background()
		convs = newMemoryConversationStore()
		states = &mockSyncStateStore{}
		svc = service.NewDashboardService(convs, states, model.Accounts, time.Minute)

		convs.put(model.ConversationRecord{ID: 1, Account: model.AccountComercial, ExternalID: "a", Status: model.StatusPending})
		convs.put(model.ConversationRecord{ID: 2, Account: model.AccountComercial, ExternalID: "b", Status: model.StatusDone})
		convs.put(model.ConversationRecord{ID: 3, Account: model.AccountSuporte, ExternalID: "a", Status: model.StatusDone})
	})

	It("lists conversations of one account filtered by status", func() {
		done := model.StatusDone
		rows, err := svc.ListConversations(ctx, store.ConversationFilter{Account: model.AccountComercial, Status: &done})

		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].ID).To(Equal(int64(2)))
	})

	It("rejects unknown accounts and statuses", func() {
		_, err := svc.ListConversations(ctx, store.ConversationFilter{Account: "MARKETING"})
		Expect(err).To(HaveOccurred())

		bogus := model.ConversationStatus("Arquivado")
		_, err = svc.ListConversations(ctx, store.ConversationFilter{Account: model.AccountSuporte, Status: &bogus})
		Expect(err).To(HaveOccurred())
	})

	It("flags suspended, lagging and never-synced accounts as stale", func() {
		recent := time.Now().Add(-30 * time.Second)
		states.listFn = func(ctx context.Context) ([]model.AccountSyncState, error) {
			return []model.AccountSyncState{
				{Account: model.AccountComercial, LastSucceededAt: &recent},
			}, nil
		}

		statuses, err := svc.AccountStatuses(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(statuses).To(HaveLen(2))
		Expect(statuses[0].Account).To(Equal(model.AccountComercial))
		Expect(statuses[0].Stale).To(BeFalse())
		Expect(statuses[0].Conversations).To(Equal(int64(2)))
		Expect(statuses[1].Account).To(Equal(model.AccountSuporte))
		Expect(statuses[1].Stale).To(BeTrue())
		Expect(statuses[1].State).To(BeNil())

		old := time.Now().Add(-10 * time.Minute)
		states.listFn = func(ctx context.Context) ([]model.AccountSyncState, error) {
			return []model.AccountSyncState{
				{Account: model.AccountComercial, LastSucceededAt: &old},
				{Account: model.AccountSuporte, LastSucceededAt: &recent, Suspended: true},
			}, nil
		}
		statuses, err = svc.AccountStatuses(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(statuses[0].Stale).To(BeTrue())
		Expect(statuses[1].Stale).To(BeTrue())
	})

	It("surfaces sync state errors", func() {
		states.listFn = func(ctx context.Context) ([]model.AccountSyncState, error) {
			return nil, errors.New("timeout")
		}
		_, err := svc.AccountStatuses(ctx)
		Expect(err).To(MatchError(ContainSubstring("timeout")))
	})
})
