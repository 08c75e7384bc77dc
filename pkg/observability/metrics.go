package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the ingestion service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Quota metrics
	QuotaDecisionsTotal  *prometheus.CounterVec
	QuotaStoreOperations *prometheus.CounterVec
	QuotaStoreDuration   *prometheus.HistogramVec

	// Admission metrics
	AdmissionEventsTotal *prometheus.CounterVec
	AdmissionBatchSize   prometheus.Histogram

	// Sink metrics
	SinkWritesTotal   *prometheus.CounterVec
	SinkWriteDuration *prometheus.HistogramVec
	SinkQueueDepth    prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_quota_decisions_total",
				Help: "Quota decisions by dimension and outcome",
			},
			[]string{"dimension", "decision"},
		),
		QuotaStoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_quota_store_operations_total",
				Help: "Quota store operations by outcome",
			},
			[]string{"operation", "status"},
		),
		QuotaStoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_quota_store_duration_seconds",
				Help:    "Quota store operation duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),

		AdmissionEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_admission_events_total",
				Help: "Events seen by the admission router",
			},
			[]string{"event_type", "outcome"},
		),
		AdmissionBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_admission_batch_size",
				Help:    "Number of events per collect batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
		),

		SinkWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_sink_writes_total",
				Help: "Sink batch writes by sink and status",
			},
			[]string{"sink", "status"},
		),
		SinkWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_sink_write_duration_seconds",
				Help:    "Sink batch write duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
		SinkQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_sink_queue_depth",
				Help: "Batches waiting in the asynchronous sink queue",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QuotaDecisionsTotal,
		m.QuotaStoreOperations,
		m.QuotaStoreDuration,
		m.AdmissionEventsTotal,
		m.AdmissionBatchSize,
		m.SinkWritesTotal,
		m.SinkWriteDuration,
		m.SinkQueueDepth,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordQuotaDecision records an admit or deny decision for a dimension
func (m *Metrics) RecordQuotaDecision(dimension, decision string) {
	if m == nil {
		return
	}
	m.QuotaDecisionsTotal.WithLabelValues(dimension, decision).Inc()
}

// RecordQuotaStore records one quota store round trip
func (m *Metrics) RecordQuotaStore(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.QuotaStoreOperations.WithLabelValues(operation, statusLabel(err)).Inc()
	m.QuotaStoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAdmission records the outcome of a single event
func (m *Metrics) RecordAdmission(eventType, outcome string) {
	if m == nil {
		return
	}
	m.AdmissionEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordBatchSize records the size of an incoming batch
func (m *Metrics) RecordBatchSize(n int) {
	if m == nil {
		return
	}
	m.AdmissionBatchSize.Observe(float64(n))
}

// RecordSinkWrite records a sink batch write
func (m *Metrics) RecordSinkWrite(sink string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.SinkWritesTotal.WithLabelValues(sink, statusLabel(err)).Inc()
	m.SinkWriteDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// SetSinkQueueDepth sets the asynchronous sink backlog
func (m *Metrics) SetSinkQueueDepth(n int) {
	if m == nil {
		return
	}
	m.SinkQueueDepth.Set(float64(n))
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
