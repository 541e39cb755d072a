package remote

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"eduops.app/relay/internal/model"
)

// ManagerSource is the slice of Client the directory needs.
type ManagerSource interface {
	ListManagers(ctx context.Context, acct model.Account) iter.Seq2[[]model.Manager, error]
}

// ManagerDirectory caches each account's manager list so webhook processing
// does not page through /managers on every delivery. Sync passes refresh it
// with Prime after listing managers themselves.
type ManagerDirectory struct {
	source ManagerSource
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewManagerDirectory(source ManagerSource, ttl time.Duration, log *slog.Logger) *ManagerDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &ManagerDirectory{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
		logger: log,
	}
}

// Managers returns the cached list for acct, listing it on a miss.
func (d *ManagerDirectory) Managers(ctx context.Context, acct model.Account) ([]model.Manager, error) {
	if cached, ok := d.cache.Get(string(acct)); ok {
		return cached.([]model.Manager), nil
	}

	managers, err := Collect(d.source.ListManagers(ctx, acct))
	if err != nil {
		return nil, fmt.Errorf("listing managers for %s: %w", acct, err)
	}
	d.Prime(acct, managers)
	d.logger.DebugContext(ctx, "manager directory refreshed", "account", string(acct), "count", len(managers))
	return managers, nil
}

// Prime replaces the cached list for acct.
func (d *ManagerDirectory) Prime(acct model.Account, managers []model.Manager) {
	d.cache.Set(string(acct), managers, d.ttl)
}

func (d *ManagerDirectory) Invalidate(acct model.Account) {
	d.cache.Delete(string(acct))
}
