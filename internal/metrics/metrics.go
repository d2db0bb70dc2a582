// Package metrics exposes compile and request counters for the catalog server. All methods are
// safe to call on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Compile outcomes
const (
	CompileSuccess    = "success"
	CompileParseError = "parse_error"
	CompileEvalError  = "evaluation_error"
	CompileMissing    = "missing"
)

// Freshness check results
const (
	CheckDebounced = "debounced"
	CheckUnchanged = "unchanged"
	CheckChanged   = "changed"
	CheckMissing   = "missing"
	CheckError     = "error"
)

// Request outcomes
const (
	RequestSuccess        = "success"
	RequestFault          = "fault"
	RequestInternalDefect = "internal_defect"
)

// Metrics tracks manifest compiles, freshness checks and configuration requests.
type Metrics struct {
	Compiles        *prometheus.CounterVec
	CompileDuration prometheus.Histogram
	FreshnessChecks *prometheus.CounterVec
	Requests        *prometheus.CounterVec
}

// New registers all metrics with reg. Passing a fresh prometheus.NewRegistry keeps tests and
// multiple server instances isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Compiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogd_compiles_total",
			Help: "Total number of manifest compile attempts by outcome",
		}, []string{"outcome"}),
		CompileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalogd_compile_duration_seconds",
			Help:    "Duration of manifest parse and scope preparation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		FreshnessChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogd_freshness_checks_total",
			Help: "Total number of manifest freshness checks by result",
		}, []string{"result"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogd_requests_total",
			Help: "Total number of configuration requests by service mode and outcome",
		}, []string{"mode", "outcome"}),
	}
}

// ObserveCompile records a compile attempt. Call with time.Now() at the start of the compile.
func (m *Metrics) ObserveCompile(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Compiles.WithLabelValues(outcome).Inc()
	m.CompileDuration.Observe(time.Since(start).Seconds())
}

// IncrementFreshnessCheck records the result of a freshness check.
func (m *Metrics) IncrementFreshnessCheck(result string) {
	if m == nil {
		return
	}
	m.FreshnessChecks.WithLabelValues(result).Inc()
}

// IncrementRequest records a configuration request.
func (m *Metrics) IncrementRequest(mode, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(mode, outcome).Inc()
}
