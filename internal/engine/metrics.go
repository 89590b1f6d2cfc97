package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

// Metrics tracks run and step counters for the /metrics endpoint.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	stepsTotal   *prometheus.CounterVec
	stepDuration prometheus.Histogram
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "humanbrowse",
			Name:      "runs_total",
			Help:      "Runs finished, by terminal status.",
		}, []string{"status"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "humanbrowse",
			Name:      "steps_total",
			Help:      "Steps executed, by type and outcome.",
		}, []string{"type", "status"}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "humanbrowse",
			Name:      "step_duration_seconds",
			Help:      "Wall time of individual steps.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// RunFinished records a run reaching status.
func (m *Metrics) RunFinished(status domain.RunStatus) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(status)).Inc()
}

// StepExecuted records one step attempt.
func (m *Metrics) StepExecuted(stepType domain.StepType, status domain.StepStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(string(stepType), string(status)).Inc()
	m.stepDuration.Observe(elapsed.Seconds())
}
