package resolver

import (
	"context"
	"log/slog"

	"eduops.app/relay/internal/model"
)

// FallbackStrategy picks an owner when no assignment tag matched. It must
// only return managers of acct with assign_chat > 0.
type FallbackStrategy interface {
	Pick(ctx context.Context, sub model.Subscriber, acct model.Account, managers []model.Manager) *model.Manager
}

// Resolver bundles both resolvers for the merge paths. Fallback is nil in
// every deployment today, which leaves untagged subscribers unassigned.
type Resolver struct {
	Fallback FallbackStrategy
	logger   *slog.Logger
}

func New(logger *slog.Logger, fallback FallbackStrategy) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Fallback: fallback, logger: logger}
}

func (r *Resolver) Name(sub model.Subscriber) string {
	return ResolveName(sub)
}

func (r *Resolver) Manager(ctx context.Context, sub model.Subscriber, acct model.Account, managers []model.Manager) *model.Manager {
	if m := ResolveManager(sub, acct, managers); m != nil {
		return m
	}
	if r.Fallback == nil {
		return nil
	}

	m := r.Fallback.Pick(ctx, sub, acct, managers)
	if m == nil {
		return nil
	}
	// The strategy is pluggable; the account and capacity rules are not.
	if m.Account != acct || !m.Eligible() {
		r.logger.WarnContext(ctx, "fallback strategy returned an ineligible manager",
			"manager_id", m.ID.String(),
			"manager_account", string(m.Account),
			"assign_chat", m.AssignChat)
		return nil
	}
	return m
}
