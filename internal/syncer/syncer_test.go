package syncer_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/syncer"
)

var updated = model.RemoteTime{Time: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}

func conversation(id, subscriberID string) model.RemoteConversation {
	return model.RemoteConversation{
		ID:           model.RemoteID(id),
		SubscriberID: model.RemoteID(subscriberID),
		Status:       model.RemoteStateOpen,
		CreatedAt:    model.RemoteTime{Time: updated.Add(-time.Hour)},
		UpdatedAt:    updated,
		Account:      model.AccountComercial,
	}
}

var _ = Describe("Synchronizer", func() {
	var (
		ctx    context.Context
		rc     *fakeRemote
		primer *fakePrimer
		convs  *fakeConversations
		states *fakeSyncStates
		locker *fakeLocker
		s      *syncer.Synchronizer
	)

	BeforeEach(func() {
		ctx = context.Background()
		full := "Bruno Costa"
		rc = &fakeRemote{
			managersFn: func(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error] {
				return seq(page[model.Manager]{items: []model.Manager{
					{ID: "m-1", FullName: "Carla", Email: "carla@escola.com", AssignChat: 2, Account: acct},
				}})
			},
			subscribersFn: func(ctx context.Context, acct model.Account) iter.Seq2[[]model.Subscriber, error] {
				return seq(page[model.Subscriber]{items: []model.Subscriber{
					{ID: "s-1", Phone: "+5511900001111", FullName: &full, CustomFields: map[string]any{"manager_id": "m-1"}, Account: acct},
					{ID: "s-2", Phone: "+5511900002222", Account: acct},
				}})
			},
			conversationsFn: func(ctx context.Context, acct model.Account) iter.Seq2[[]model.RemoteConversation, error] {
				return seq(
					page[model.RemoteConversation]{items: []model.RemoteConversation{conversation("c-1", "s-1")}},
					page[model.RemoteConversation]{items: []model.RemoteConversation{conversation("c-2", "s-2")}},
				)
			},
		}
		primer = &fakePrimer{}
		convs = &fakeConversations{}
		states = &fakeSyncStates{}
		locker = &fakeLocker{}
		s = syncer.New(rc, primer, convs, states, nil, locker, nil, syncer.Config{AuthRetryInterval: time.Hour}, nil)
	})

	It("merges every conversation with the resolved lead and attendant", func() {
		res, err := s.SyncAccount(ctx, model.AccountComercial)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Conversations).To(Equal(2))
		Expect(res.Inserted).To(Equal(2))
		Expect(res.Subscribers).To(Equal(2))

		snaps := convs.merged()
		Expect(snaps[0].LeadName).To(Equal("Bruno Costa"))
		Expect(snaps[0].Attendant).NotTo(BeNil())
		Expect(snaps[0].Attendant.Email).To(Equal("carla@escola.com"))
		Expect(snaps[1].LeadName).To(Equal("Cliente 2222"))
		Expect(snaps[1].Attendant).To(BeNil())

		Expect(primer.primed[model.AccountComercial]).To(HaveLen(1))
		Expect(states.calls[0].kind).To(Equal("started"))
		Expect(states.last().kind).To(Equal("succeeded"))
		Expect(locker.released.Load()).To(Equal(int32(1)))
		// One subscriber page and two conversation pages.
		Expect(locker.extended.Load()).To(Equal(int32(3)))
	})

	It("is idempotent across passes over unchanged data", func() {
		_, err := s.SyncAccount(ctx, model.AccountComercial)
		Expect(err).NotTo(HaveOccurred())

		res, err := s.SyncAccount(ctx, model.AccountComercial)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Inserted).To(BeZero())
		Expect(res.Updated).To(BeZero())
		Expect(res.Unchanged).To(Equal(2))
	})

	It("aborts the pass when managers cannot be listed", func() {
		rc.managersFn = func(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error] {
			return seq(page[model.Manager]{err: &domain.TransientError{Account: string(acct), Op: "list_managers", StatusCode: 503}})
		}

		_, err := s.SyncAccount(ctx, model.AccountComercial)

		Expect(domain.IsRetryable(err)).To(BeTrue())
		Expect(convs.merged()).To(BeEmpty())
		Expect(states.last().kind).To(Equal("failed"))
		Expect(states.last().suspended).To(BeFalse())
	})

	It("skips a failing page and a failing conversation and keeps going", func() {
		rc.conversationsFn = func(ctx context.Context, acct model.Account) iter.Seq2[[]model.RemoteConversation, error] {
			return seq(
				page[model.RemoteConversation]{err: &domain.TransientError{Account: string(acct), Op: "list_conversations"}},
				page[model.RemoteConversation]{items: []model.RemoteConversation{
					conversation("c-1", "s-1"),
					{ID: "c-broken", Account: acct},
					conversation("c-3", "s-2"),
				}},
			)
		}
		convs.mergeFn = func(ctx context.Context, snap model.ConversationSnapshot) error {
			if snap.ExternalID == "c-1" {
				return errors.New("deadlock detected")
			}
			return nil
		}

		res, err := s.SyncAccount(ctx, model.AccountComercial)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.PagesSkipped).To(Equal(1))
		Expect(res.Failed).To(Equal(2))
		Expect(res.Inserted).To(Equal(1))
		Expect(convs.merged()[0].ExternalID).To(Equal("c-3"))
	})

	It("suspends only the account whose credentials were rejected", func() {
		rc.managersFn = func(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error] {
			if acct == model.AccountSuporte {
				return seq(page[model.Manager]{err: &domain.AuthenticationError{Account: string(acct), StatusCode: 401}})
			}
			return seq(page[model.Manager]{items: []model.Manager{}})
		}

		_, err := s.SyncAccount(ctx, model.AccountSuporte)
		Expect(domain.IsAuthentication(err)).To(BeTrue())
		Expect(states.last().suspended).To(BeTrue())

		_, err = s.SyncAccount(ctx, model.AccountSuporte)
		Expect(err).To(MatchError(syncer.ErrSuspended))

		_, err = s.SyncAccount(ctx, model.AccountComercial)
		Expect(err).NotTo(HaveOccurred())

		s.Resume(model.AccountSuporte)
		_, err = s.SyncAccount(ctx, model.AccountSuporte)
		Expect(domain.IsAuthentication(err)).To(BeTrue())
	})

	It("runs a single pass per account at a time", func() {
		release := make(chan struct{})
		entered := make(chan struct{}, 4)
		rc.managersFn = func(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error] {
			entered <- struct{}{}
			<-release
			return seq(page[model.Manager]{items: []model.Manager{}})
		}

		var wg sync.WaitGroup
		results := make([]*syncer.PassResult, 3)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				res, err := s.SyncAccount(ctx, model.AccountComercial)
				Expect(err).NotTo(HaveOccurred())
				results[i] = res
			}(i)
		}

		Eventually(entered).Should(Receive())
		// Give the other callers time to pile up behind the running pass.
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		Expect(rc.managerCalls.Load()).To(Equal(int32(1)))
		Expect(results[0]).To(BeIdenticalTo(results[1]))
		Expect(results[1]).To(BeIdenticalTo(results[2]))
	})

	It("skips the pass when another replica holds the lock", func() {
		locker.held = true

		res, err := s.SyncAccount(ctx, model.AccountComercial)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Skipped).To(BeTrue())
		Expect(rc.managerCalls.Load()).To(BeZero())
	})

	It("stops the pass when the lock is lost to another replica", func() {
		locker.loseAfter = 1

		_, err := s.SyncAccount(ctx, model.AccountComercial)

		Expect(err).To(MatchError(syncer.ErrLockLost))
		Expect(convs.merged()).To(BeEmpty())
		Expect(states.last().kind).To(Equal("failed"))
		Expect(locker.released.Load()).To(Equal(int32(1)))
	})

	It("stops between conversations when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		convs.mergeFn = func(ctx context.Context, snap model.ConversationSnapshot) error {
			cancel()
			return nil
		}
		rc.conversationsFn = func(ctx context.Context, acct model.Account) iter.Seq2[[]model.RemoteConversation, error] {
			return seq(page[model.RemoteConversation]{items: []model.RemoteConversation{
				conversation("c-1", "s-1"),
				conversation("c-2", "s-2"),
			}})
		}

		_, err := s.SyncAccount(cctx, model.AccountComercial)

		Expect(err).To(MatchError(context.Canceled))
		Expect(convs.merged()).To(HaveLen(1))
	})

	It("rejects unknown accounts", func() {
		_, err := s.SyncAccount(ctx, "MARKETING")

		var cfgErr *domain.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})
})
