package metrics

import "github.com/prometheus/client_golang/prometheus"

// Orchestration Prometheus metrics.
var (
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydrolens",
			Name:      "tool_invocations_total",
			Help:      "Total number of tool invocations",
		},
		[]string{"tool", "status"}, // status: "ok" / error detail
	)

	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hydrolens",
			Name:      "tool_duration_seconds",
			Help:      "Tool invocation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"tool"},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydrolens",
			Name:      "sessions_total",
			Help:      "Total orchestration sessions by terminal state",
		},
		[]string{"state"}, // "done" / "failed" / "rejected" / "overloaded"
	)

	ContextChars = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hydrolens",
			Name:      "context_chars",
			Help:      "Assembled evidence context size in characters",
			Buckets:   []float64{0, 500, 1000, 2000, 4000, 6000, 8000},
		},
	)

	SynthesisRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hydrolens",
			Name:      "synthesis_retries_total",
			Help:      "Total synthesis retries with a reduced context",
		},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydrolens",
			Name:      "generation_requests_total",
			Help:      "Total text-generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hydrolens",
			Name:      "generation_duration_seconds",
			Help:      "Text-generation request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"provider", "model"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydrolens",
			Name:      "embedding_requests_total",
			Help:      "Total embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hydrolens",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydrolens",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var orchMetricsRegistered bool

// RegisterOrchestratorMetrics registers orchestration metrics. Must be called once from main.
func RegisterOrchestratorMetrics() {
	if orchMetricsRegistered {
		return
	}
	prometheus.MustRegister(ToolInvocationsTotal)
	prometheus.MustRegister(ToolDuration)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(ContextChars)
	prometheus.MustRegister(SynthesisRetriesTotal)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingCacheTotal)
	orchMetricsRegistered = true
}
