// Package observability holds the Prometheus metrics of the dashboard.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market_dashboard"

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Market data metrics
	ProviderRequestsTotal *prometheus.CounterVec
	ProviderErrorsTotal   *prometheus.CounterVec
	ProviderDuration      *prometheus.HistogramVec
	CacheLookupsTotal     *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec

	// Analysis metrics
	TimeframeOutcomes *prometheus.CounterVec
	ReportsTotal      *prometheus.CounterVec
	ReportDuration    prometheus.Histogram

	// LLM metrics
	LLMRequestsTotal *prometheus.CounterVec
	LLMDuration      *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. A nil registerer
// uses the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "route"},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Total number of market data requests",
			},
			[]string{"provider", "asset_class"},
		),
		ProviderErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "errors_total",
				Help:      "Total number of failed market data requests",
			},
			[]string{"provider", "asset_class"},
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "duration_seconds",
				Help:      "Duration of market data requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"provider"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Bar cache lookups by result",
			},
			[]string{"result"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "fallbacks_total",
				Help:      "Requests served by synthetic data after the primary provider failed",
			},
			[]string{"asset_class"},
		),

		TimeframeOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "timeframe_outcomes_total",
				Help:      "Timeframe classifications by status",
			},
			[]string{"timeframe", "status"},
		),
		ReportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "reports_total",
				Help:      "Generated reports by overall signal",
			},
			[]string{"signal"},
		),
		ReportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "report_duration_seconds",
				Help:      "Duration of report generation in seconds",
				Buckets:   defaultBuckets,
			},
		),

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "requests_total",
				Help:      "LLM requests by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		LLMDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "duration_seconds",
				Help:      "Duration of LLM requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"breaker"},
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordProviderRequest records a market data request and its outcome.
func (m *Metrics) RecordProviderRequest(provider, assetClass string, duration time.Duration, err error) {
	m.ProviderRequestsTotal.WithLabelValues(provider, assetClass).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		m.ProviderErrorsTotal.WithLabelValues(provider, assetClass).Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordFallback records a request served by synthetic data.
func (m *Metrics) RecordFallback(assetClass string) {
	m.FallbacksTotal.WithLabelValues(assetClass).Inc()
}

// ObserveTimeframe records one timeframe classification.
func (m *Metrics) ObserveTimeframe(timeframe, status string) {
	m.TimeframeOutcomes.WithLabelValues(timeframe, status).Inc()
}

// RecordReport records a generated report.
func (m *Metrics) RecordReport(signal string, duration time.Duration) {
	m.ReportsTotal.WithLabelValues(signal).Inc()
	m.ReportDuration.Observe(duration.Seconds())
}

// RecordLLMRequest records an LLM call.
func (m *Metrics) RecordLLMRequest(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(operation, status).Inc()
	m.LLMDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// BreakerStateChanged sets the breaker gauge and counts trips.
func (m *Metrics) BreakerStateChanged(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	if state == 2 {
		m.CircuitBreakerTrips.WithLabelValues(name).Inc()
	}
}
