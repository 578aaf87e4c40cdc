package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Publish metrics
	PublishTotal    *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	TarballSize     prometheus.Histogram

	// Query metrics
	QueriesTotal *prometheus.CounterVec

	// Index metrics
	IndexPackages     prometheus.Gauge
	IndexVersions     prometheus.Gauge
	IndexSaveDuration prometheus.Histogram
	IndexCorrupt      prometheus.Counter

	startTime time.Time
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registry_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registry_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registry_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Publish metrics
		PublishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_publish_total",
				Help: "Total number of publish requests by outcome",
			},
			[]string{"outcome"},
		),
		PublishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "registry_publish_duration_seconds",
				Help:    "Publish duration in seconds, tarball write and index update included",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		TarballSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "registry_tarball_size_bytes",
				Help:    "Size of published tarballs in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		// Query metrics
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_queries_total",
				Help: "Total number of registry queries by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		// Index metrics
		IndexPackages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "registry_index_packages",
				Help: "Number of packages in the last saved index",
			},
		),
		IndexVersions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "registry_index_versions",
				Help: "Number of versions in the last saved index",
			},
		),
		IndexSaveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "registry_index_save_duration_seconds",
				Help:    "Index snapshot write duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		IndexCorrupt: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "registry_index_corrupt_total",
				Help: "Number of index loads that found an invalid snapshot",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "registry_uptime_seconds",
			Help: "Registry uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the Prometheus registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordPublish records one publish attempt.
func (m *Metrics) RecordPublish(outcome string, duration time.Duration, size int) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(outcome).Inc()
	m.PublishDuration.Observe(duration.Seconds())
	if outcome == "success" {
		m.TarballSize.Observe(float64(size))
	}
}

// RecordQuery records one read operation.
func (m *Metrics) RecordQuery(operation, outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(operation, outcome).Inc()
}

// SetIndexSize sets the package and version gauges.
func (m *Metrics) SetIndexSize(packages, versions int) {
	if m == nil {
		return
	}
	m.IndexPackages.Set(float64(packages))
	m.IndexVersions.Set(float64(versions))
}

// ObserveIndexSave records the duration of one snapshot write.
func (m *Metrics) ObserveIndexSave(d time.Duration) {
	if m == nil {
		return
	}
	m.IndexSaveDuration.Observe(d.Seconds())
}

// IncIndexCorrupt counts a load that found an invalid snapshot.
func (m *Metrics) IncIndexCorrupt() {
	if m == nil {
		return
	}
	m.IndexCorrupt.Inc()
}
