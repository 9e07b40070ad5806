package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline and the query service.
type Metrics struct {
	MessagesRead     prometheus.Counter
	TablesExtracted  *prometheus.CounterVec // labels: variable
	SummariesWritten *prometheus.CounterVec // labels: group
	PipelineRunning  prometheus.Gauge

	// Unit metrics. stage is one of extract, aggregate, package, check.
	UnitDuration *prometheus.HistogramVec // labels: stage
	UnitErrors   *prometheus.CounterVec   // labels: stage

	// Packaging metrics.
	ObjectsWritten prometheus.Counter
	ObjectsFailed  prometheus.Counter

	// Query metrics.
	QueryRequests *prometheus.CounterVec // labels: outcome={ok,invalid,too_many_cells,fetch_error}
	QueryCache    *prometheus.CounterVec // labels: result={hit,miss}
	QueryDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.MessagesRead,
		m.TablesExtracted,
		m.SummariesWritten,
		m.PipelineRunning,
		m.UnitDuration,
		m.UnitErrors,
		m.ObjectsWritten,
		m.ObjectsFailed,
		m.QueryRequests,
		m.QueryCache,
		m.QueryDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		MessagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_read_total",
			Help:      help("Total raw grid messages read by extractors."),
		}),
		TablesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_extracted_total",
			Help:      help("Wide tables written by variable."),
		}, []string{"variable"}),
		SummariesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_written_total",
			Help:      help("Aggregated summaries written by group."),
		}, []string{"group"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while a batch run is active, 0 otherwise."),
		}),
		UnitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      help("Duration of one extraction, aggregation or packaging unit."),
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600, 1800},
		}, []string{"stage"}),
		UnitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_errors_total",
			Help:      help("Failed units by stage."),
		}, []string{"stage"}),
		ObjectsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_written_total",
			Help:      help("Storage objects written."),
		}),
		ObjectsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_failed_total",
			Help:      help("Storage object writes that failed."),
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      help("Query requests by outcome."),
		}, []string{"outcome"}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      help("Object cache lookups by result."),
		}, []string{"result"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      help("Query resolution duration in seconds."),
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}
