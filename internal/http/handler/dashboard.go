package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"eduops.app/relay/internal/http/dto"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/service"
	"eduops.app/relay/internal/store"
)

// DashboardHandler serves persisted data only; it never reaches the remote
// platform.
type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(service service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

func (h *DashboardHandler) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()

	var q dto.ListConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := model.ParseAccount(q.Account)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := store.ConversationFilter{Account: acct, Limit: q.Limit}
	if q.Status != "" {
		status, err := model.ParseConversationStatus(q.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = &status
	}

	records, err := h.service.ListConversations(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list conversations", "error", err, "account", string(acct))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	if records == nil {
		records = []model.ConversationRecord{}
	}

	c.JSON(http.StatusOK, dto.ListConversationsResponse{
		Conversations: records,
		Account:       string(acct),
		Count:         len(records),
	})
}

func (h *DashboardHandler) AccountStatuses(c *gin.Context) {
	ctx := c.Request.Context()

	statuses, err := h.service.AccountStatuses(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load account statuses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account statuses"})
		return
	}

	c.JSON(http.StatusOK, dto.AccountStatusResponse{Accounts: statuses})
}
