package service

import (
	"context"
	"fmt"
	"time"

	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/store"
)

// staleAfterPolls is how many missed poll intervals mark an account stale.
const staleAfterPolls = 3

type AccountStatus struct {
	State         *model.AccountSyncState `json:"state,omitempty"`
	Account       model.Account           `json:"account"`
	Conversations int64                   `json:"conversations"`
	Stale         bool                    `json:"stale"`
}

// DashboardService serves the last persisted data. It never calls the
// remote platform, so reads keep working while an account is suspended.
type DashboardService interface {
	ListConversations(ctx context.Context, filter store.ConversationFilter) ([]model.ConversationRecord, error)
	AccountStatuses(ctx context.Context) ([]AccountStatus, error)
}

type dashboardService struct {
	conversations store.ConversationStore
	syncStates    store.SyncStateStore
	accounts      []model.Account
	pollInterval  time.Duration
	now           func() time.Time
}

func NewDashboardService(conversations store.ConversationStore, syncStates store.SyncStateStore, accounts []model.Account, pollInterval time.Duration) DashboardService {
	return &dashboardService{
		conversations: conversations,
		syncStates:    syncStates,
		accounts:      accounts,
		pollInterval:  pollInterval,
		now:           time.Now,
	}
}

func (s *dashboardService) ListConversations(ctx context.Context, filter store.ConversationFilter) ([]model.ConversationRecord, error) {
	if !filter.Account.Valid() {
		return nil, fmt.Errorf("unknown account %q", filter.Account)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", *filter.Status)
	}
	return s.conversations.List(ctx, filter)
}

func (s *dashboardService) AccountStatuses(ctx context.Context) ([]AccountStatus, error) {
	states, err := s.syncStates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sync states: %w", err)
	}
	byAccount := make(map[model.Account]model.AccountSyncState, len(states))
	for _, st := range states {
		byAccount[st.Account] = st
	}

	out := make([]AccountStatus, 0, len(s.accounts))
	for _, acct := range s.accounts {
		count, err := s.conversations.CountByAccount(ctx, acct)
		if err != nil {
			return nil, fmt.Errorf("counting conversations for %s: %w", acct, err)
		}
		status := AccountStatus{Account: acct, Conversations: count, Stale: true}
		if st, ok := byAccount[acct]; ok {
			status.State = &st
			status.Stale = s.isStale(st)
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *dashboardService) isStale(st model.AccountSyncState) bool {
	if st.Suspended || st.LastSucceededAt == nil {
		return true
	}
	if s.pollInterval <= 0 {
		return false
	}
	return s.now().Sub(*st.LastSucceededAt) > staleAfterPolls*s.pollInterval
}
