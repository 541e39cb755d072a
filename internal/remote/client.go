package remote

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/account"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/model"
)

// Config tunes every per-account client identically; quotas are still
// enforced per account.
type Config struct {
	Timeout     time.Duration // per attempt
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxAttempts int // total attempts including the first
	RatePerSec  float64
	RateBurst   int
	PageSize    int
	UserAgent   string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = 20 * c.BackoffBase
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.UserAgent == "" {
		c.UserAgent = "eduops-relay/1.0"
	}
	return c
}

// Client talks to the messaging platform on behalf of every configured
// account. Each account has its own HTTP client, token and rate limiter.
type Client struct {
	router  *account.Router
	clients map[model.Account]*accountClient
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(router *account.Router, cfg Config, m *metrics.Metrics, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	c := &Client{
		router:  router,
		clients: make(map[model.Account]*accountClient),
		metrics: m,
		logger:  log,
	}
	for _, acct := range router.Accounts() {
		creds, err := router.Resolve(acct)
		if err != nil {
			return nil, err
		}
		c.clients[acct] = newAccountClient(creds, cfg, m, log)
	}
	return c, nil
}

// ListSubscribers pages through the account's contacts. The sequence is lazy
// and restartable: ranging over it again starts from the first page.
func (c *Client) ListSubscribers(ctx context.Context, acct model.Account) iter.Seq2[[]model.Subscriber, error] {
	ac, err := c.forAccount(acct)
	if err != nil {
		return failed[model.Subscriber](err)
	}
	return paginate(ctx, ac, "list_subscribers", "/subscribers", func(s *model.Subscriber) { s.Account = acct })
}

func (c *Client) ListManagers(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error] {
	ac, err := c.forAccount(acct)
	if err != nil {
		return failed[model.Manager](err)
	}
	return paginate(ctx, ac, "list_managers", "/managers", func(m *model.Manager) { m.Account = acct })
}

func (c *Client) ListConversations(ctx context.Context, acct model.Account) iter.Seq2[[]model.RemoteConversation, error] {
	ac, err := c.forAccount(acct)
	if err != nil {
		return failed[model.RemoteConversation](err)
	}
	return paginate(ctx, ac, "list_conversations", "/conversations", func(conv *model.RemoteConversation) {
		conv.Account = acct
		if conv.Subscriber != nil {
			conv.Subscriber.Account = acct
		}
	})
}

func (c *Client) ListMessages(ctx context.Context, acct model.Account, conversationID string) iter.Seq2[[]model.Message, error] {
	ac, err := c.forAccount(acct)
	if err != nil {
		return failed[model.Message](err)
	}
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	return paginate[model.Message](ctx, ac, "list_messages", path, nil)
}

func (c *Client) forAccount(acct model.Account) (*accountClient, error) {
	if _, err := c.router.Resolve(acct); err != nil {
		return nil, err
	}
	ac, ok := c.clients[acct]
	if !ok {
		return nil, &domain.ConfigurationError{Account: string(acct), Reason: "no remote client"}
	}
	return ac, nil
}

type accountClient struct {
	acct     model.Account
	http     *resty.Client
	limiter  *rate.Limiter
	pageSize int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func newAccountClient(creds account.Credentials, cfg Config, m *metrics.Metrics, log *slog.Logger) *accountClient {
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst)

	httpClient := resty.New().
		SetBaseURL(creds.BaseURL).
		SetAuthToken(creds.APIToken).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(cfg.MaxAttempts - 1).
		SetRetryWaitTime(cfg.BackoffBase).
		SetRetryMaxWaitTime(cfg.BackoffMax).
		AddRetryCondition(retryable)

	// Runs before every attempt, retries included, so the quota covers them.
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &accountClient{
		acct:     creds.Account,
		http:     httpClient,
		limiter:  limiter,
		pageSize: cfg.PageSize,
		metrics:  m,
		logger:   log,
	}
}

// retryable selects timeouts, 429 and 5xx. 401/403 and other 4xx fail fast.
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// get performs one logical GET (with retries) and returns the raw body.
func (c *accountClient) get(ctx context.Context, op, path string, query map[string]string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)

	body, callErr := c.classify(ctx, op, resp, err)
	c.metrics.RemoteCall(string(c.acct), op, outcome(callErr), time.Since(start))
	if callErr != nil {
		return nil, callErr
	}
	return body, nil
}

func (c *accountClient) classify(ctx context.Context, op string, resp *resty.Response, err error) ([]byte, error) {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.TransientError{Account: string(c.acct), Op: op, Err: err}
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		c.logger.ErrorContext(ctx, "platform rejected credentials",
			"op", op,
			"status", code)
		return nil, &domain.AuthenticationError{
			Account:    string(c.acct),
			StatusCode: code,
			Body:       logger.Truncate(resp.String(), 512),
		}
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return nil, &domain.TransientError{Account: string(c.acct), Op: op, StatusCode: code}
	case code >= http.StatusBadRequest:
		return nil, fmt.Errorf("%s for account %s: unexpected status %d: %s",
			op, c.acct, code, logger.Truncate(resp.String(), 256))
	}
	return resp.Body(), nil
}

func outcome(err error) string {
	var (
		authErr      *domain.AuthenticationError
		transientErr *domain.TransientError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &transientErr):
		return "transient_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func failed[T any](err error) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		yield(nil, err)
	}
}
