// Package metrics exposes Prometheus collectors for provider calls and
// pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clintrovert/sarek/pkg/types"
)

// Metrics bundles every collector the service registers.
type Metrics struct {
	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	StageChanges    *prometheus.CounterVec
}

// New registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarek",
			Name:      "provider_calls_total",
			Help:      "Provider completion calls by backend and outcome.",
		}, []string{"provider", "outcome"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sarek",
			Name:      "provider_call_seconds",
			Help:      "Provider completion latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarek",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by final state.",
		}, []string{"state"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sarek",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		StageChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarek",
			Name:      "run_stage_transitions_total",
			Help:      "Run state machine transitions.",
		}, []string{"state"}),
	}
}

// ObserveProviderCall records one provider completion.
func (m *Metrics) ObserveProviderCall(provider, outcome string, elapsed time.Duration) {
	m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(run *types.Run) {
	m.RunsTotal.WithLabelValues(string(run.State)).Inc()
	if !run.CompletedAt.IsZero() {
		m.RunDuration.Observe(run.CompletedAt.Sub(run.CreatedAt).Seconds())
	}
}

// RunStateChanged implements the pipeline observer.
func (m *Metrics) RunStateChanged(_ string, state types.RunState) {
	m.StageChanges.WithLabelValues(string(state)).Inc()
}
