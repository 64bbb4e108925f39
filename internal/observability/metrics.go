package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the router's Prometheus metrics.
//
// Tracked signals:
//   - events processed, by terminal status
//   - classifier decisions, by mode and primary agent
//   - per-agent results and wall-clock duration
//   - model adapter calls, by operation and outcome
//   - conditional-append conflict retries in the blob store
type Metrics struct {
	// EventsTotal counts processed events. Labels: status (done|failed|ignored).
	EventsTotal *prometheus.CounterVec

	// ClassifierDecisions counts routing decisions.
	// Labels: mode (path_hint|content|keyword_fallback), primary.
	ClassifierDecisions *prometheus.CounterVec

	// AgentResults counts per-agent outcomes.
	// Labels: agent, status (success|failure|skipped).
	AgentResults *prometheus.CounterVec

	// AgentDuration measures per-agent processing time in seconds.
	// Labels: agent.
	AgentDuration *prometheus.HistogramVec

	// ModelCalls counts model adapter invocations.
	// Labels: op (classify|enrich|generate|health), status (success|error).
	ModelCalls *prometheus.CounterVec

	// AppendConflicts counts conditional-append precondition retries.
	AppendConflicts prometheus.Counter
}

// NewMetrics creates and registers all metrics. Pass nil to register with the
// default registry; tests pass their own prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_events_total",
				Help: "Transcript events processed, by terminal status.",
			},
			[]string{"status"},
		),
		ClassifierDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_classifier_decisions_total",
				Help: "Routing decisions, by classifier mode and primary agent.",
			},
			[]string{"mode", "primary"},
		),
		AgentResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_agent_results_total",
				Help: "Per-agent results, by agent and status.",
			},
			[]string{"agent", "status"},
		),
		AgentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_agent_duration_seconds",
				Help:    "Per-agent processing duration.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"agent"},
		),
		ModelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_model_calls_total",
				Help: "Model adapter invocations, by operation and outcome.",
			},
			[]string{"op", "status"},
		),
		AppendConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_append_conflicts_total",
				Help: "Conditional-append precondition failures that triggered a retry.",
			},
		),
	}
}
