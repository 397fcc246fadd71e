package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

const metricsNamespace = "ace_lms"

// Report outcomes recorded by ObserveReport.
const (
	ReportOutcomeFinished = "finished"
	ReportOutcomeRetried  = "retried"
	ReportOutcomeFailed   = "failed"
)

// MetricsService owns a private Prometheus registry and keeps running totals for the
// admin snapshot endpoint. Every method is safe on a nil receiver.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	cacheDuration *prometheus.HistogramVec
	filterRuns    *prometheus.CounterVec
	filterVisible *prometheus.GaugeVec
	reportJobs    *prometheus.CounterVec
	reportRows    *prometheus.HistogramVec

	totals struct {
		requests      atomic.Uint64
		requestNanos  atomic.Uint64
		cacheHits     atomic.Uint64
		cacheMisses   atomic.Uint64
		filters       atomic.Uint64
		reportsDone   atomic.Uint64
		reportsFailed atomic.Uint64
	}
}

// NewMetricsService registers the API collectors together with the Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: metricsNamespace}),
	)
	f := promauto.With(reg)

	return &MetricsService{
		registry: reg,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of served requests by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route", "status"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Summary cache lookups by result.",
		}, []string{"result"}),
		cacheDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "operation_seconds",
			Help:      "Latency of summary cache reads and writes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		}, []string{"op"}),
		filterRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "filter_evaluations_total",
			Help: "Filtered listings evaluated per resource.",
		}, []string{"resource"}),
		filterVisible: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "filter_visible_records",
			Help: "Records left visible by the most recent listing per resource.",
		}, []string{"resource"}),
		reportJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reports",
			Name:      "jobs_total",
			Help:      "Report job attempts by type and outcome.",
		}, []string{"type", "outcome"}),
		reportRows: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "reports",
			Name:      "rows",
			Help:      "Rows written per finished report.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"type"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest implements middleware.RequestObserver.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	m.totals.requests.Add(1)
	m.totals.requestNanos.Add(uint64(d.Nanoseconds()))
}

// RecordCacheOperation counts one summary cache read.
func (m *MetricsService) RecordCacheOperation(hit bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.totals.cacheHits.Add(1)
	} else {
		m.totals.cacheMisses.Add(1)
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheDuration.WithLabelValues("get").Observe(d.Seconds())
}

// ObserveCacheWrite records the latency of one summary cache write.
func (m *MetricsService) ObserveCacheWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.cacheDuration.WithLabelValues("set").Observe(d.Seconds())
}

// ObserveFilter counts one catalog listing and the records it left visible.
func (m *MetricsService) ObserveFilter(resource string, total, visible int) {
	if m == nil {
		return
	}
	m.filterRuns.WithLabelValues(resource).Inc()
	m.filterVisible.WithLabelValues(resource).Set(float64(visible))
	m.totals.filters.Add(1)
}

// ObserveReport records one report job attempt. rows is only meaningful for finished jobs.
func (m *MetricsService) ObserveReport(reportType, outcome string, rows int) {
	if m == nil {
		return
	}
	m.reportJobs.WithLabelValues(reportType, outcome).Inc()
	switch outcome {
	case ReportOutcomeFinished:
		m.reportRows.WithLabelValues(reportType).Observe(float64(rows))
		m.totals.reportsDone.Add(1)
	case ReportOutcomeFailed:
		m.totals.reportsFailed.Add(1)
	}
}

// Snapshot returns the running totals for GET /metrics/system.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	snap := models.SystemMetrics{Goroutines: runtime.NumGoroutine(), GeneratedAt: time.Now().UTC()}
	if m == nil {
		return snap
	}
	snap.CacheHits = m.totals.cacheHits.Load()
	snap.CacheMisses = m.totals.cacheMisses.Load()
	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRatio = float64(snap.CacheHits) / float64(lookups)
	}
	snap.RequestsTotal = m.totals.requests.Load()
	if snap.RequestsTotal > 0 {
		snap.AverageRequestDurationMs = float64(m.totals.requestNanos.Load()) / float64(snap.RequestsTotal) / float64(time.Millisecond)
	}
	snap.FilterEvaluations = m.totals.filters.Load()
	snap.ReportsFinished = m.totals.reportsDone.Load()
	snap.ReportsFailed = m.totals.reportsFailed.Load()
	return snap
}
