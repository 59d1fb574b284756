package viterbi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus-compatible instrumentation for decode runs:
// per-step latency, break counts, and frontier size, namespaced "viterbi".
//
// All metrics are labeled by run_id so a single registry can serve many
// concurrently-running decoders (each decoding a different sequence; the
// decoder itself remains single-threaded per instance).
type Metrics struct {
	stepLatency    *prometheus.HistogramVec
	breaks         *prometheus.CounterVec
	frontierSize   *prometheus.GaugeVec
	emissionMiss   *prometheus.CounterVec
	transitionMiss *prometheus.CounterVec
}

// NewMetrics registers and returns the decoder's metric set with the given
// registry. Pass prometheus.DefaultRegisterer for the global registry, or a
// fresh prometheus.NewRegistry() for test isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "viterbi",
			Name:      "step_latency_ms",
			Help:      "Forward-step execution duration in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
		}, []string{"run_id", "status"}),
		breaks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viterbi",
			Name:      "breaks_total",
			Help:      "Number of times a decode run transitioned to the broken state",
		}, []string{"run_id"}),
		frontierSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "viterbi",
			Name:      "frontier_size",
			Help:      "Number of extended-state nodes retained in the current frontier",
		}, []string{"run_id"}),
		emissionMiss: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viterbi",
			Name:      "emission_miss_total",
			Help:      "Forward steps aborted due to a missing emission log-probability",
		}, []string{"run_id"}),
		transitionMiss: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viterbi",
			Name:      "transition_miss_total",
			Help:      "Candidate/predecessor pairs with no supplied transition probability (implicit -Inf)",
		}, []string{"run_id"}),
	}
}

// RecordStepLatency observes one forward step's wall-clock duration.
func (m *Metrics) RecordStepLatency(runID, status string, d time.Duration) {
	m.stepLatency.WithLabelValues(runID, status).Observe(float64(d.Microseconds()) / 1000.0)
}

// IncrementBreaks records a transition into the broken state.
func (m *Metrics) IncrementBreaks(runID string) {
	m.breaks.WithLabelValues(runID).Inc()
}

// SetFrontierSize records the current frontier's node count.
func (m *Metrics) SetFrontierSize(runID string, size int) {
	m.frontierSize.WithLabelValues(runID).Set(float64(size))
}

// IncrementEmissionMiss records an aborted step due to a missing emission.
func (m *Metrics) IncrementEmissionMiss(runID string) {
	m.emissionMiss.WithLabelValues(runID).Inc()
}

// IncrementTransitionMiss records an implicit -Inf transition lookup.
func (m *Metrics) IncrementTransitionMiss(runID string) {
	m.transitionMiss.WithLabelValues(runID).Inc()
}
