package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"eduops.app/relay/internal/account"
	"eduops.app/relay/internal/http/dto"
	"eduops.app/relay/internal/service"
)

// AccountResolver is the part of the account router admin routes need.
type AccountResolver interface {
	ResolveName(name string) (account.Credentials, error)
}

type AdminHandler struct {
	replay   service.ReplayService
	accounts AccountResolver
}

func NewAdminHandler(replay service.ReplayService, accounts AccountResolver) *AdminHandler {
	return &AdminHandler{replay: replay, accounts: accounts}
}

// RequestSync queues an out-of-schedule pass. The worker lifts an
// authentication suspension before running it.
func (h *AdminHandler) RequestSync(c *gin.Context) {
	ctx := c.Request.Context()

	creds, err := h.accounts.ResolveName(c.Param("account"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}

	if err := h.replay.RequestSync(ctx, creds.Account); err != nil {
		slog.ErrorContext(ctx, "failed to request sync", "error", err, "account", string(creds.Account))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request sync"})
		return
	}

	c.JSON(http.StatusAccepted, dto.SyncRequestedResponse{
		Account: string(creds.Account),
		Status:  "queued",
	})
}

func (h *AdminHandler) ReplayWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	webhookLogID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook log id"})
		return
	}

	entry, err := h.replay.Replay(ctx, webhookLogID)
	switch {
	case errors.Is(err, service.ErrWebhookLogNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook log not found"})
		return
	case errors.Is(err, service.ErrWebhookAlreadyDone), errors.Is(err, service.ErrWebhookLogMalformed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.ErrorContext(ctx, "failed to replay webhook", "error", err, "webhook_log_id", webhookLogID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay webhook"})
		return
	}

	c.JSON(http.StatusAccepted, dto.ReplayResponse{
		WebhookLogID: entry.ID,
		Account:      string(entry.Account),
		Attempts:     entry.Attempts,
		Enqueued:     true,
	})
}
