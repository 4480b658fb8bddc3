package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_dashboard"

// Metrics holds the Prometheus collectors for vendor calls and the coordinate cache.
type Metrics struct {
	VendorRequests        *prometheus.CounterVec   // labels: endpoint={geocoding,weather}, outcome={success,<kind>,canceled}
	VendorRequestDuration *prometheus.HistogramVec // labels: endpoint
	VendorRetries         *prometheus.CounterVec   // labels: endpoint
	CoordinatesCache      *prometheus.CounterVec   // labels: result={hit,miss}
	BreakerState          *prometheus.GaugeVec     // labels: breaker; 0 closed, 1 half-open, 2 open
}

// NewMetrics creates all collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VendorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_requests_total",
			Help:      "Weather vendor requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		VendorRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vendor_request_duration_seconds",
			Help:      "Weather vendor request duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		VendorRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_retries_total",
			Help:      "Retries issued against the weather vendor.",
		}, []string{"endpoint"}),
		CoordinatesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinates_cache_total",
			Help:      "Coordinate cache lookups by result.",
		}, []string{"result"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Vendor circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"breaker"}),
	}

	reg.MustRegister(
		m.VendorRequests,
		m.VendorRequestDuration,
		m.VendorRetries,
		m.CoordinatesCache,
		m.BreakerState,
	)

	return m
}

// NewMetricsForTesting registers against a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
