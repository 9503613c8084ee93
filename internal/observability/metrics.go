package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/transitgw/internal/util"
)

// unmatchedRoute is the label value used for requests that do not
// match any rule, keeping the route label bounded.
const unmatchedRoute = "unmatched"

// Auth outcome label values.
const (
	AuthOutcomeAllowed     = "allowed"
	AuthOutcomeMissing     = "missing_credential"
	AuthOutcomeInvalid     = "invalid_credential"
	AuthOutcomeUnavailable = "unavailable"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	activeRequests     prometheus.Gauge
	rateLimitAdmits    *prometheus.CounterVec
	authChecks         *prometheus.CounterVec
	authDuration       prometheus.Histogram
	upstreamErrors     *prometheus.CounterVec
	upstreamDuration   *prometheus.HistogramVec
	circuitBreaker     *prometheus.GaugeVec
	configuredServices *prometheus.GaugeVec
	buildInfo          *prometheus.GaugeVec
	startTime          prometheus.Gauge
	registry           *prometheus.Registry
}

// NewMetrics creates a new Metrics instance on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "transitgw"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route", "status"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	m.rateLimitAdmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Admission decisions taken by the rate limiter",
		},
		[]string{"decision"},
	)

	m.authChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_checks_total",
			Help:      "Admin verification outcomes",
		},
		[]string{"outcome"},
	)

	m.authDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_check_duration_seconds",
			Help:      "Duration of calls to the user service verification endpoint",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Requests that could not be delivered to a service",
		},
		[]string{"service", "reason"},
	)

	m.upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Time until the upstream response headers arrived",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	m.circuitBreaker = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)

	m.configuredServices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "configured_service_info",
			Help:      "Services known to the registry",
		},
		[]string{"service", "address"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the gateway",
		},
		[]string{"version"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the gateway in unix seconds",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.rateLimitAdmits,
		m.authChecks,
		m.authDuration,
		m.upstreamErrors,
		m.upstreamDuration,
		m.circuitBreaker,
		m.configuredServices,
		m.buildInfo,
		m.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.startTime.SetToCurrentTime()

	return m
}

// RecordRequest records a completed HTTP request.
// The route parameter is the matched rule name, never the raw path.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, route, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, route, statusStr).Observe(duration.Seconds())
}

// RecordRateLimit records an admission decision.
func (m *Metrics) RecordRateLimit(allowed bool) {
	decision := "rejected"
	if allowed {
		decision = "allowed"
	}
	m.rateLimitAdmits.WithLabelValues(decision).Inc()
}

// RecordAuthCheck records the outcome of an admin verification.
func (m *Metrics) RecordAuthCheck(outcome string, duration time.Duration) {
	m.authChecks.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.authDuration.Observe(duration.Seconds())
	}
}

// RecordUpstreamError records a failed delivery to a service.
func (m *Metrics) RecordUpstreamError(service, reason string) {
	m.upstreamErrors.WithLabelValues(service, reason).Inc()
}

// RecordUpstreamDuration records the time to first response byte.
func (m *Metrics) RecordUpstreamDuration(service string, d time.Duration) {
	m.upstreamDuration.WithLabelValues(service).Observe(d.Seconds())
}

// SetCircuitBreakerState sets the circuit breaker state.
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.circuitBreaker.WithLabelValues(service).Set(float64(state))
}

// SetConfiguredService publishes one registry entry.
func (m *Metrics) SetConfiguredService(service, address string) {
	m.configuredServices.WithLabelValues(service, address).Set(1)
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegisterCollector registers an additional collector with the
// private registry, panicking on error.
func (m *Metrics) MustRegisterCollector(c prometheus.Collector) {
	m.registry.MustRegister(c)
}

// MetricsMiddleware returns a middleware that records request metrics.
// The rule name is read from the context slot the dispatch pipeline
// fills, so the middleware must wrap it from the outside.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = r.WithContext(WithRouteReporting(r.Context()))

			rw := util.NewStatusCapturingResponseWriter(w)

			metrics.activeRequests.Inc()
			defer metrics.activeRequests.Dec()

			next.ServeHTTP(rw, r)

			route := ReportedRoute(r.Context())
			if route == "" {
				route = unmatchedRoute
			}
			metrics.RecordRequest(r.Method, route, rw.StatusCode, time.Since(start))
		})
	}
}
