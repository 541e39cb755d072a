package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Metrics holds every collector the service exports. A nil *Metrics is valid
// and records nothing, which keeps tests and the inspect CLI free of setup.
type Metrics struct {
	registry *prometheus.Registry

	remoteRequests  *prometheus.CounterVec
	remoteLatency   *prometheus.HistogramVec
	syncPasses      *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	merges          *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	webhookOutcomes *prometheus.CounterVec
	sweepReplayed   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Calls to the messaging platform by account, operation and outcome.",
		}, []string{"account", "op", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Latency of platform calls including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"account", "op"}),
		syncPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Synchronization passes by account and result.",
		}, []string{"account", "result"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a synchronization pass.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"account"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "merges_total",
			Help:      "Conversation merges by account, source and outcome.",
		}, []string{"account", "source", "outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "received_total",
			Help:      "Webhook deliveries by account and ingest result.",
		}, []string{"account", "result"}),
		webhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "processed_total",
			Help:      "Webhook processing attempts by account and outcome.",
		}, []string{"account", "outcome"}),
		sweepReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "sweep_replayed_total",
			Help:      "Unprocessed webhook logs re-enqueued by the sweeper.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.remoteRequests,
		m.remoteLatency,
		m.syncPasses,
		m.syncDuration,
		m.merges,
		m.webhooks,
		m.webhookOutcomes,
		m.sweepReplayed,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RemoteCall(account, op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(account, op, outcome).Inc()
	m.remoteLatency.WithLabelValues(account, op).Observe(elapsed.Seconds())
}

func (m *Metrics) SyncPass(account, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncPasses.WithLabelValues(account, result).Inc()
	m.syncDuration.WithLabelValues(account).Observe(elapsed.Seconds())
}

func (m *Metrics) Merge(account, source, outcome string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(account, source, outcome).Inc()
}

func (m *Metrics) WebhookReceived(account, result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(account, result).Inc()
}

func (m *Metrics) WebhookProcessed(account, outcome string) {
	if m == nil {
		return
	}
	m.webhookOutcomes.WithLabelValues(account, outcome).Inc()
}

func (m *Metrics) SweepReplayed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepReplayed.Add(float64(n))
}
