package observability

import (
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	messagesTotal   *prometheus.CounterVec
	intentsTotal    *prometheus.CounterVec
	ledgerOps       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expensebot_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensebot_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensebot_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensebot_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensebot_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensebot_messages_total",
				Help: "Total inbound messages processed.",
			},
			[]string{"status"},
		),
		intentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensebot_intents_total",
				Help: "Classified intents by kind.",
			},
			[]string{"intent"},
		),
		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensebot_ledger_operations_total",
				Help: "Ledger operations by kind and outcome.",
			},
			[]string{"operation", "outcome"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrMessage increments the message counter with a status label.
func (m *Metrics) IncrMessage(status string) {
	m.messagesTotal.WithLabelValues(status).Inc()
}

// IncrIntent counts one routed intent.
func (m *Metrics) IncrIntent(kind domain.IntentKind) {
	m.intentsTotal.WithLabelValues(string(kind)).Inc()
}

// IncrLedgerOp counts one ledger operation outcome ("ok", "not_found", "error").
func (m *Metrics) IncrLedgerOp(operation, outcome string) {
	m.ledgerOps.WithLabelValues(operation, outcome).Inc()
}

// Snapshot returns the current counters for GET /v1/metrics/summary.
func (m *Metrics) Snapshot() *domain.AssistantMetrics {
	// Note: Prometheus counters expose cumulative values.
	success := getCounterValue(m.messagesTotal, "success")
	failed := getCounterValue(m.messagesTotal, "error")
	total := success + failed
	tokens := getCounterValue(m.tokensUsed, "prompt") + getCounterValue(m.tokensUsed, "completion")

	errorRate := float64(0)
	avgTokens := float64(0)
	if total > 0 {
		errorRate = failed / total
		avgTokens = tokens / total
	}

	intents := make(map[string]int64, len(domain.IntentKinds))
	for _, k := range domain.IntentKinds {
		if v := getCounterValue(m.intentsTotal, string(k)); v > 0 {
			intents[string(k)] = int64(v)
		}
	}

	return &domain.AssistantMetrics{
		TotalMessages:       int64(total),
		ErrorRate:           errorRate,
		Intents:             intents,
		AvgTokensPerMessage: avgTokens,
		CategoryCacheHits:   int64(getCounterValue(m.cacheHits, "category")),
		CategoryCacheMisses: int64(getCounterValue(m.cacheMisses, "category")),
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
