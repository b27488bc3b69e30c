package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "district_analytics"

// Metrics holds the Prometheus collectors for the API, caches and ingestion.
type Metrics struct {
	// Ingestion pipeline.
	MessagesConsumed        prometheus.Counter
	MetricsStored           prometheus.Counter
	RecordsRejected         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// HTTP API.
	HTTPRequests        *prometheus.CounterVec   // labels: route, method, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: route

	// Caches and lookups.
	CacheLookups      *prometheus.CounterVec // labels: cache={geo,overview,overview_shared}, result={hit,miss}
	GeoResolutions    *prometheus.CounterVec // labels: outcome={found,not_found,invalid,unavailable}
	GeocoderRequests  *prometheus.CounterVec // labels: outcome={success,error}
	BoundariesLoaded  prometheus.Gauge
	DistrictsReported prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the metrics source topic.",
		}),
		MetricsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_stored_total",
			Help:      "Total monthly metric records written to the store.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Total source records that failed parsing or validation.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingestion pipeline is active, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-validate-store cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		GeoResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_resolutions_total",
			Help:      "Coordinate-to-district resolutions by outcome.",
		}, []string{"outcome"}),
		GeocoderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverse_geocoder_requests_total",
			Help:      "Reverse geocoding API calls by outcome.",
		}, []string{"outcome"}),
		BoundariesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boundaries_loaded",
			Help:      "Number of districts with a usable boundary.",
		}),
		DistrictsReported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overview_districts_reporting",
			Help:      "Districts with data in the most recently computed state overview.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MetricsStored,
		m.RecordsRejected,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.CacheLookups,
		m.GeoResolutions,
		m.GeocoderRequests,
		m.BoundariesLoaded,
		m.DistrictsReported,
	}
}

// NewMetrics creates all metrics and registers them with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// CacheHit records a hit on the named cache.
func (m *Metrics) CacheHit(cache string) {
	m.CacheLookups.WithLabelValues(cache, "hit").Inc()
}

// CacheMiss records a miss on the named cache.
func (m *Metrics) CacheMiss(cache string) {
	m.CacheLookups.WithLabelValues(cache, "miss").Inc()
}
