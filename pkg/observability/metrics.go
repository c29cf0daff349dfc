package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the platform core
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Token lifecycle metrics
	TokenExchangesTotal *prometheus.CounterVec
	TokenRefreshesTotal *prometheus.CounterVec

	// Authorization metrics
	AuthzDecisionsTotal  *prometheus.CounterVec
	ReconciliationsTotal *prometheus.CounterVec

	// Workspace metrics
	ProvisionDuration        prometheus.Histogram
	NamespaceCacheHitsTotal  *prometheus.CounterVec
	NamespaceCacheMissTotal  prometheus.Counter
	NamespaceDerivedFallback prometheus.Counter
}

// NewMetrics creates and registers all metrics on the given registry.
// A nil registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atrium_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TokenExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_token_exchanges_total",
				Help: "Total number of identity-to-session token exchanges",
			},
			[]string{"outcome"},
		),
		TokenRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_token_refreshes_total",
				Help: "Total number of session token refreshes",
			},
			[]string{"outcome"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_authz_decisions_total",
				Help: "Authorization decisions by outcome",
			},
			[]string{"outcome"},
		),
		ReconciliationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_role_reconciliations_total",
				Help: "Request-time role reconciliation lookups by outcome",
			},
			[]string{"outcome"},
		),
		ProvisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "atrium_workspace_provision_duration_seconds",
				Help:    "Workspace namespace provisioning duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		NamespaceCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_namespace_cache_hits_total",
				Help: "Namespace resolver cache hits by tier",
			},
			[]string{"tier"},
		),
		NamespaceCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atrium_namespace_cache_misses_total",
				Help: "Namespace resolver lookups that reached the store",
			},
		),
		NamespaceDerivedFallback: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atrium_namespace_derived_fallbacks_total",
				Help: "Namespace resolutions served by pure derivation",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenExchangesTotal,
		m.TokenRefreshesTotal,
		m.AuthzDecisionsTotal,
		m.ReconciliationsTotal,
		m.ProvisionDuration,
		m.NamespaceCacheHitsTotal,
		m.NamespaceCacheMissTotal,
		m.NamespaceDerivedFallback,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware instruments request count and duration
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
