package webhook

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"eduops.app/relay/internal/account"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/http/dto"
	"eduops.app/relay/internal/service"
)

// TokenHeader carries the per-account webhook secret.
const TokenHeader = "X-Webhook-Token"

// maxBodyBytes caps one delivery; platform events are a few KB.
const maxBodyBytes = 1 << 20

// CredentialResolver is the part of the account router the handler needs.
type CredentialResolver interface {
	ResolveName(name string) (account.Credentials, error)
}

type PlatformWebhookHandler struct {
	accounts    CredentialResolver
	ingest      service.WebhookIngestService
	traceHeader string
}

func NewPlatformWebhookHandler(accounts CredentialResolver, ingest service.WebhookIngestService, traceHeader string) *PlatformWebhookHandler {
	return &PlatformWebhookHandler{
		accounts:    accounts,
		ingest:      ingest,
		traceHeader: traceHeader,
	}
}

// HandleEvent logs the delivery durably and answers 202. Everything past the
// log write happens on the worker.
func (h *PlatformWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	creds, err := h.accounts.ResolveName(c.Param("account"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}

	if creds.WebhookSecret != "" {
		token := c.GetHeader(TokenHeader)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing webhook token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(creds.WebhookSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	delete(headers, TokenHeader)

	params := service.WebhookIngestParams{
		Account: string(creds.Account),
		Body:    body,
		Headers: headers,
	}
	if traceID := h.traceID(c); traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.ingest.Ingest(ctx, params)
	if err != nil {
		var malformed *domain.MalformedPayloadError
		var cfgErr *domain.ConfigurationError
		switch {
		case errors.As(err, &malformed):
			c.JSON(http.StatusBadRequest, gin.H{"error": malformed.Error()})
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		default:
			slog.ErrorContext(ctx, "failed to ingest webhook", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest webhook"})
		}
		return
	}

	slog.InfoContext(ctx, "webhook accepted",
		"webhook_log_id", result.WebhookLog.ID,
		"event_type", result.WebhookLog.EventType,
		"enqueued", result.Enqueued,
		"duplicated", result.Duplicated,
		"malformed", result.Malformed)

	c.JSON(http.StatusAccepted, dto.WebhookAcceptedResponse{
		WebhookLogID: result.WebhookLog.ID,
		DedupeKey:    result.DedupeKey,
		Enqueued:     result.Enqueued,
		Duplicated:   result.Duplicated,
		Malformed:    result.Malformed,
	})
}

func (h *PlatformWebhookHandler) traceID(c *gin.Context) string {
	if h.traceHeader != "" {
		if v := c.GetHeader(h.traceHeader); v != "" {
			return v
		}
	}
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}
