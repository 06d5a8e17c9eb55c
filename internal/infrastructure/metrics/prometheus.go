package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request transports
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	// Prometheus metrics
	cacheHitRate       prometheus.Gauge
	cacheKeys          prometheus.Gauge
	cacheMemoryBytes   prometheus.Gauge
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestErrors      *prometheus.CounterVec
	relationshipWrites *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter registered on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusExporter(reg prometheus.Registerer, collector *Collector) *PrometheusExporter {
	factory := promauto.With(reg)

	// Cache counters are read straight from the cache statistics
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "nichesite_name_cache_hits_total",
		Help: "Total number of display-name cache hits",
	}, func() float64 { return float64(collector.GetCacheMetrics().Hits) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "nichesite_name_cache_misses_total",
		Help: "Total number of display-name cache misses",
	}, func() float64 { return float64(collector.GetCacheMetrics().Misses) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "nichesite_name_cache_evictions_total",
		Help: "Total number of cache evictions due to memory limits",
	}, func() float64 { return float64(collector.GetCacheMetrics().Evictions) })

	return &PrometheusExporter{
		collector: collector,
		cacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nichesite_name_cache_hit_rate",
			Help: "Current cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nichesite_name_cache_keys_current",
			Help: "Current number of keys in the display-name cache",
		}),
		cacheMemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nichesite_name_cache_memory_bytes",
			Help: "Current memory usage of the display-name cache in bytes",
		}),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nichesite_requests_total",
				Help: "Total number of HTTP and gRPC requests",
			},
			[]string{"transport", "method"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nichesite_request_duration_seconds",
				Help:    "Duration of HTTP and gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"transport", "method"},
		),
		requestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nichesite_request_errors_total",
				Help: "Total number of failed HTTP and gRPC requests",
			},
			[]string{"transport", "method"},
		),
		relationshipWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nichesite_relationship_writes_total",
				Help: "Relationship writes by entry point and outcome",
			},
			[]string{"source", "result"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.cacheMemoryBytes.Set(float64(cacheMetrics.MemoryBytes))
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(transport, method string) {
	e.requests.WithLabelValues(transport, method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(transport, method string, durationSeconds float64) {
	e.requestDuration.WithLabelValues(transport, method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(transport, method string) {
	e.requestErrors.WithLabelValues(transport, method).Inc()
}

// RecordRelationshipWrite records a write outcome in the collector and in Prometheus.
func (e *PrometheusExporter) RecordRelationshipWrite(source, result string) {
	e.collector.RecordRelationshipWrite(source, result)
	e.relationshipWrites.WithLabelValues(source, result).Inc()
}
