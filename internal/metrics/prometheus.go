package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for the daemon
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeRequests      prometheus.Gauge

	// Assignment engine
	assignmentsTotal *prometheus.CounterVec

	// Authorization and quotas
	authzDenialsTotal *prometheus.CounterVec
	quotaDenialsTotal *prometheus.CounterVec

	// Session cache
	sessionCacheTotal *prometheus.CounterVec

	// Event outbox
	outboxEventsTotal  *prometheus.CounterVec
	outboxBacklog      prometheus.Gauge
	brokerCircuitState prometheus.Gauge

	// Rate limiting
	rateLimitedTotal prometheus.Counter

	uptime prometheus.GaugeFunc
}

// Default histogram buckets for request duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	// Register default Go and process collectors
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, route, and status",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_milliseconds",
				Help:      "HTTP request duration in milliseconds",
				Buckets:   buckets,
			},
			[]string{"method", "route"},
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_requests",
				Help:      "Number of HTTP requests currently in flight",
			},
		),

		assignmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assignments_total",
				Help:      "Assignment operations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		authzDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authz_denials_total",
				Help:      "Authorization denials by reason",
			},
			[]string{"reason"},
		),

		quotaDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_denials_total",
				Help:      "Creates rejected by account quota, by resource",
			},
			[]string{"resource"},
		),

		sessionCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_cache_total",
				Help:      "Session cache lookups by result",
			},
			[]string{"result"},
		),

		outboxEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_events_total",
				Help:      "Outbox relay outcomes",
			},
			[]string{"result"},
		),

		outboxBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_backlog",
				Help:      "Outbox rows waiting to be published",
			},
		),

		brokerCircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "broker_circuit_state",
				Help:      "Broker circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),

		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the daemon started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.activeRequests,
		pm.assignmentsTotal,
		pm.authzDenialsTotal,
		pm.quotaDenialsTotal,
		pm.sessionCacheTotal,
		pm.outboxEventsTotal,
		pm.outboxBacklog,
		pm.brokerCircuitState,
		pm.rateLimitedTotal,
		pm.uptime,
	)

	promMetrics = pm
}

// RecordPrometheusHTTPRequest records a completed HTTP request
func RecordPrometheusHTTPRequest(method, route string, status int, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	promMetrics.httpRequestDuration.WithLabelValues(method, route).Observe(durationMs)
}

// RecordPrometheusAssignment records an assignment operation outcome
func RecordPrometheusAssignment(kind, outcome string) {
	if promMetrics == nil {
		return
	}
	promMetrics.assignmentsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordAuthzDenial records an authorization denial
func RecordAuthzDenial(reason string) {
	if promMetrics == nil {
		return
	}
	promMetrics.authzDenialsTotal.WithLabelValues(reason).Inc()
}

// RecordQuotaDenial records a create rejected by quota
func RecordQuotaDenial(resource string) {
	if promMetrics == nil {
		return
	}
	promMetrics.quotaDenialsTotal.WithLabelValues(resource).Inc()
}

// RecordPrometheusSessionCache records a session cache lookup result
func RecordPrometheusSessionCache(hit bool) {
	if promMetrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	promMetrics.sessionCacheTotal.WithLabelValues(result).Inc()
}

// RecordPrometheusOutboxEvent records an outbox relay outcome
// result: published, retried, failed
func RecordPrometheusOutboxEvent(result string) {
	if promMetrics == nil {
		return
	}
	promMetrics.outboxEventsTotal.WithLabelValues(result).Inc()
}

// SetOutboxBacklog sets the outbox backlog gauge
func SetOutboxBacklog(n int64) {
	if promMetrics == nil {
		return
	}
	promMetrics.outboxBacklog.Set(float64(n))
}

// SetBrokerCircuitState sets the broker circuit breaker state gauge
// (0=closed, 1=open, 2=half-open)
func SetBrokerCircuitState(state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.brokerCircuitState.Set(float64(state))
}

// RecordRateLimited counts a request rejected by the rate limiter
func RecordRateLimited() {
	if promMetrics == nil {
		return
	}
	promMetrics.rateLimitedTotal.Inc()
}

// IncActiveRequests increments the in-flight request gauge
func IncActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Inc()
}

// DecActiveRequests decrements the in-flight request gauge
func DecActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Dec()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}
