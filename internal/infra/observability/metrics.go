package observability

import (
	"time"

	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the portal backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	sgpErrors       *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	toolDispatches  *prometheus.CounterVec
	chatTurns       *prometheus.CounterVec
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
				Name:    "central_request_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sgpErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "central_sgp_errors_total",
				Help: "Total errors from SGP endpoints.",
			},
			[]string{"endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "central_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "central_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "central_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		toolDispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "central_chat_tool_dispatches_total",
				Help: "Total tool dispatches requested by the model.",
			},
			[]string{"tool", "outcome"},
		),
		chatTurns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "central_chat_turns_total",
				Help: "Total chat turns processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrSGPError increments the SGP error counter for an endpoint.
func (m *Metrics) IncrSGPError(endpoint string) {
	m.sgpErrors.WithLabelValues(endpoint).Inc()
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

// IncrToolDispatch increments the tool dispatch counter.
// outcome is "ok" or "error".
func (m *Metrics) IncrToolDispatch(tool, outcome string) {
	m.toolDispatches.WithLabelValues(tool, outcome).Inc()
}

// IncrChatTurn increments the chat turn counter with a status label.
func (m *Metrics) IncrChatTurn(status string) {
	m.chatTurns.WithLabelValues(status).Inc()
}

// GetAgentSnapshot returns a snapshot of chat-agent metrics suitable for the
// GET /v1/metrics/agent endpoint.
func (m *Metrics) GetAgentSnapshot() *domain.AgentMetrics {
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	totalTurns := getCounterValue(m.chatTurns, "success") +
		getCounterValue(m.chatTurns, "error")
	errorCount := getCounterValue(m.chatTurns, "error")

	totalTokens := promptTokens + completionTokens
	avgTokens := float64(0)
	errorRate := float64(0)
	if totalTurns > 0 {
		avgTokens = totalTokens / totalTurns
		errorRate = errorCount / totalTurns
	}

	return &domain.AgentMetrics{
		TotalTurns:       int64(totalTurns),
		ErrorRate:        errorRate,
		AvgTokensPerTurn: avgTokens,
		PromptTokens:     int64(promptTokens),
		CompletionTokens: int64(completionTokens),
		Period:           "all_time",
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
