package service

import (
	"log/slog"

	"eduops.app/relay/core/config"
	"eduops.app/relay/internal/mapper"
	"eduops.app/relay/internal/metrics"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/queue"
	"eduops.app/relay/internal/resolver"
	"eduops.app/relay/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	producer queue.Producer
	metrics  *metrics.Metrics
	accounts []model.Account
	syncCfg  config.SyncConfig
	logger   *slog.Logger
}

func NewServices(stores *store.Stores, txRunner TxRunner, producer queue.Producer, m *metrics.Metrics, accounts []model.Account, syncCfg config.SyncConfig, log *slog.Logger) *Services {
	if log == nil {
		log = slog.Default()
	}
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		producer: producer,
		metrics:  m,
		accounts: accounts,
		syncCfg:  syncCfg,
		logger:   log,
	}
}

func (s *Services) Conversations() ConversationService {
	return NewConversationService(s.txRunner, s.metrics, s.syncCfg.MergeTimeout, s.logger)
}

func (s *Services) WebhookIngest() WebhookIngestService {
	return NewWebhookIngestService(s.stores.WebhookLogs(), mapper.NewPlatformEventMapper(), s.producer, s.metrics, s.logger)
}

func (s *Services) WebhookProcessor(managers ManagerLookup) WebhookProcessor {
	return NewWebhookProcessor(s.stores.WebhookLogs(), s.Conversations(), managers, resolver.New(s.logger, nil), s.metrics, s.logger)
}

func (s *Services) Dashboard() DashboardService {
	return NewDashboardService(s.stores.Conversations(), s.stores.SyncStates(), s.accounts, s.syncCfg.PollInterval)
}

func (s *Services) Replay() ReplayService {
	return NewReplayService(s.stores.WebhookLogs(), s.producer, s.metrics, s.logger)
}
