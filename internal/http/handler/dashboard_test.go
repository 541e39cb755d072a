package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/internal/http/dto"
	"eduops.app/relay/internal/http/handler"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
)

var _ = Describe("DashboardHandler", func() {
	var (
		router *gin.Engine
		svc    *mockDashboardService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockDashboardService{}
		h := handler.NewDashboardHandler(svc)
		router.GET("/conversations", h.ListConversations)
		router.GET("/accounts/status", h.AccountStatuses)
	})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("ListConversations", func() {
		It("passes account, status and limit to the service", func() {
			var got store.ConversationFilter
			svc.listFn = func(_ context.Context, filter store.ConversationFilter) ([]model.ConversationRecord, error) {
				got = filter
				return []model.ConversationRecord{{
					ID:         7,
					Account:    model.AccountSuporte,
					ExternalID: "c-1",
					LeadName:   "Ana Souza",
					Status:     model.StatusInProgress,
				}}, nil
			}

			q := url.Values{"account": {"suporte"}, "status": {"Em andamento"}, "limit": {"20"}}
			w := get("/conversations?" + q.Encode())

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got.Account).To(Equal(model.AccountSuporte))
			Expect(got.Status).NotTo(BeNil())
			Expect(*got.Status).To(Equal(model.StatusInProgress))
			Expect(got.Limit).To(Equal(int32(20)))

			var resp dto.ListConversationsResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(1))
			Expect(resp.Conversations[0].LeadName).To(Equal("Ana Souza"))
		})

		It("returns an empty list rather than null", func() {
			w := get("/conversations?account=COMERCIAL")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"conversations":[]`))
		})

		DescribeTable("rejects bad queries",
			func(query string) {
				w := get("/conversations" + query)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
			},
			Entry("missing account", ""),
			Entry("unknown account", "?account=MARKETING"),
			Entry("unknown status", "?account=COMERCIAL&status=Arquivado"),
			Entry("limit too large", "?account=COMERCIAL&limit=5000"),
		)

		It("returns 500 when the store fails", func() {
			svc.listFn = func(context.Context, store.ConversationFilter) ([]model.ConversationRecord, error) {
				return nil, errors.New("connection reset")
			}

			w := get("/conversations?account=COMERCIAL")

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("AccountStatuses", func() {
		It("returns the persisted state with the stale flag", func() {
			succeeded := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
			svc.statusesFn = func(context.Context) ([]service.AccountStatus, error) {
				return []service.AccountStatus{
					{Account: model.AccountComercial, Conversations: 12, State: &model.AccountSyncState{Account: model.AccountComercial, LastSucceededAt: &succeeded}},
					{Account: model.AccountSuporte, Stale: true, State: &model.AccountSyncState{Account: model.AccountSuporte, Suspended: true}},
				}, nil
			}

			w := get("/accounts/status")

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp dto.AccountStatusResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Accounts).To(HaveLen(2))
			Expect(resp.Accounts[0].Stale).To(BeFalse())
			Expect(resp.Accounts[0].Conversations).To(Equal(int64(12)))
			Expect(resp.Accounts[1].Stale).To(BeTrue())
			Expect(resp.Accounts[1].State.Suspended).To(BeTrue())
		})
	})
})
