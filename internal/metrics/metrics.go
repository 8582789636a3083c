// Package metrics exposes Prometheus counters for demo imports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reign_demo"

// Skip reasons used as the "reason" label of rows_skipped_total.
const (
	SkipAdmin     = "admin"
	SkipList      = "skip_list"
	SkipDuplicate = "duplicate"
	SkipSchema    = "schema"
)

// Recorder records import activity. A nil *Recorder is valid and discards
// everything, so components can take one unconditionally.
type Recorder struct {
	registry *prometheus.Registry

	statementsExecuted *prometheus.CounterVec
	statementsFailed   *prometheus.CounterVec
	rowsSkipped        *prometheus.CounterVec
	optionsApplied     prometheus.Counter
	runs               *prometheus.CounterVec
	runDuration        prometheus.Histogram
}

// New creates a Recorder with its own registry, including process and Go
// runtime collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		statementsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_executed_total",
			Help:      "SQL statements executed against the live database, by table class.",
		}, []string{"class"}),
		statementsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_failed_total",
			Help:      "SQL statements that returned an error, by table class.",
		}, []string{"class"}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Dump rows deliberately not applied, by reason.",
		}, []string{"reason"}),
		optionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "options_applied_total",
			Help:      "Options written through the options API.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed import runs, by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of import runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	r.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		r.statementsExecuted,
		r.statementsFailed,
		r.rowsSkipped,
		r.optionsApplied,
		r.runs,
		r.runDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

func (r *Recorder) StatementExecuted(class string) {
	if r == nil {
		return
	}
	r.statementsExecuted.WithLabelValues(class).Inc()
}

func (r *Recorder) StatementFailed(class string) {
	if r == nil {
		return
	}
	r.statementsFailed.WithLabelValues(class).Inc()
}

// RowsSkipped adds n to the skipped-row counter for reason.
func (r *Recorder) RowsSkipped(reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsSkipped.WithLabelValues(reason).Add(float64(n))
}

func (r *Recorder) OptionApplied() {
	if r == nil {
		return
	}
	r.optionsApplied.Inc()
}

// RunFinished records a completed run.
func (r *Recorder) RunFinished(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
	r.runDuration.Observe(d.Seconds())
}
