// Package metrics exposes Prometheus instrumentation for evaluator runs.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deixis/closeout/internal/locator"
	"github.com/deixis/closeout/internal/runner"
	"github.com/deixis/closeout/internal/status"
)

// Failure kinds used as the "kind" label of orchestration failures.
const (
	KindBinaryNotFound = "binary_not_found"
	KindSpawn          = "spawn"
	KindTimeout        = "timeout"
	KindInvalid        = "invalid"
	KindOther          = "other"
)

// Metrics groups the collectors for one registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	failures      *prometheus.CounterVec
	reportsAbsent prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "closeout",
			Name:      "runs_total",
			Help:      "Evaluator runs that exited, by classified status.",
		}, []string{"status"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "closeout",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of evaluator runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "closeout",
			Name:      "orchestration_failures_total",
			Help:      "Invocations that produced no exit code, by kind.",
		}, []string{"kind"}),
		reportsAbsent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "closeout",
			Name:      "reports_absent_total",
			Help:      "Runs whose structured report could not be obtained.",
		}),
	}
}

// ObserveRun records a run that exited.
func (m *Metrics) ObserveRun(s status.Status, d time.Duration, hasReport bool) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(s.String()).Inc()
	m.runDuration.WithLabelValues(s.String()).Observe(d.Seconds())
	if !hasReport {
		m.reportsAbsent.Inc()
	}
}

// ObserveFailure records an orchestration failure of the given kind.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// FailureKind maps an orchestration error to its label. Errors that mark
// an invalid request are recognised by the caller-supplied sentinels.
func FailureKind(err error, invalid ...error) string {
	var spawn *runner.SpawnError
	switch {
	case errors.Is(err, locator.ErrBinaryNotFound):
		return KindBinaryNotFound
	case errors.Is(err, runner.ErrTimeout):
		return KindTimeout
	case errors.As(err, &spawn):
		return KindSpawn
	}
	for _, target := range invalid {
		if errors.Is(err, target) {
			return KindInvalid
		}
	}
	return KindOther
}
