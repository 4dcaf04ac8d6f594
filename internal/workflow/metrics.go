package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes recorded by libgen_workflow_runs_total.
const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeError    = "error"
)

// Metrics holds the Prometheus metrics owned by the workflow. A nil *Metrics
// records nothing.
type Metrics struct {
	// stageDuration records the wall-clock duration of each stage.
	stageDuration *prometheus.HistogramVec

	// runsTotal counts finished runs by outcome: ok, degraded, or error.
	runsTotal *prometheus.CounterVec

	// contextTokens records the estimated tokens of retrieved context per run.
	contextTokens prometheus.Histogram

	// indexedChunks counts chunks written to the context store.
	indexedChunks prometheus.Counter
}

// NewMetrics registers the workflow metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "libgen",
			Subsystem: "workflow",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of workflow stages.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libgen",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total number of workflow runs, partitioned by outcome.",
		}, []string{"outcome"}),

		contextTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "libgen",
			Subsystem: "context",
			Name:      "tokens",
			Help:      "Estimated tokens of retrieved context passed to generation.",
			Buckets:   []float64{0, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),

		indexedChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "libgen",
			Subsystem: "context",
			Name:      "indexed_chunks_total",
			Help:      "Total number of chunks indexed into the context store.",
		}),
	}
}

func (m *Metrics) observeStage(stage Stage, seconds float64) {
	if m != nil {
		m.stageDuration.WithLabelValues(stage.String()).Observe(seconds)
	}
}

func (m *Metrics) observeRun(outcome string) {
	if m != nil {
		m.runsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) observeContext(tokens int) {
	if m != nil {
		m.contextTokens.Observe(float64(tokens))
	}
}

func (m *Metrics) addIndexed(n int) {
	if m != nil && n > 0 {
		m.indexedChunks.Add(float64(n))
	}
}
