package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"eduops.app/relay/common/logger"
)

// Logger writes one line per request. Routes carrying an :account parameter
// get the account attached to the request context so handler logs share it.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		fields := logger.LogFields{Component: "relay.http"}
		if acct := c.Param("account"); acct != "" {
			fields.Account = logger.Ptr(acct)
		}
		c.Request = c.Request.WithContext(logger.WithLogFields(c.Request.Context(), fields))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		ctx := c.Request.Context()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request error", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}
