package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the insights service.
type Metrics struct {
	// Query metrics
	Queries          *prometheus.CounterVec
	QueryLatency     *prometheus.HistogramVec
	RowsReturned     prometheus.Histogram
	ActiveFilters    prometheus.Histogram
	ValidationErrors *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec
	RateLimitHits *prometheus.CounterVec

	// System metrics
	DBConnections    *prometheus.GaugeVec
	SchedulerRuns    *prometheus.CounterVec
	SchedulerLastRun *prometheus.GaugeVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Metrics queries by outcome",
			},
			[]string{"status"},
		),
		QueryLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Warehouse query latency in seconds, connection acquisition included",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		RowsReturned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_rows_returned",
				Help:      "Records returned per successful query",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		ActiveFilters: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_active_filters",
				Help:      "Number of predicates per compiled query",
				Buckets:   prometheus.LinearBuckets(0, 1, 9),
			},
		),
		ValidationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "filter_validation_errors_total",
				Help:      "Rejected requests by offending filter",
			},
			[]string{"field"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),

		DBConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Connection pool usage",
			},
			[]string{"state"},
		),
		SchedulerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_runs_total",
				Help:      "Background job executions",
			},
			[]string{"job", "status"},
		),
		SchedulerLastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_last_run_timestamp_seconds",
				Help:      "Unix time of the last successful job run",
			},
			[]string{"job"},
		),
	}
}

// Handler returns the Prometheus HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a Prometheus HTTP handler for a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordQuery records the outcome of one warehouse query.
func (m *Metrics) RecordQuery(status string, duration time.Duration, rows int) {
	m.Queries.WithLabelValues(status).Inc()
	m.QueryLatency.WithLabelValues(status).Observe(duration.Seconds())
	if status == "ok" {
		m.RowsReturned.Observe(float64(rows))
	}
}

// RecordActiveFilters records how many predicates a query carried.
func (m *Metrics) RecordActiveFilters(n int) {
	m.ActiveFilters.Observe(float64(n))
}

// RecordValidationError records a rejected filter.
func (m *Metrics) RecordValidationError(field string) {
	m.ValidationErrors.WithLabelValues(field).Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, code int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(route string) {
	m.RateLimitHits.WithLabelValues(route).Inc()
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordSchedulerRun records a background job execution.
func (m *Metrics) RecordSchedulerRun(job string, err error, at time.Time) {
	if err != nil {
		m.SchedulerRuns.WithLabelValues(job, "error").Inc()
		return
	}
	m.SchedulerRuns.WithLabelValues(job, "ok").Inc()
	m.SchedulerLastRun.WithLabelValues(job).Set(float64(at.Unix()))
}
