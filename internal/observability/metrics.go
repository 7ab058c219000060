package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authorization decision labels.
const (
	DecisionAllowed         = "allowed"
	DecisionForbidden       = "forbidden"
	DecisionUnauthenticated = "unauthenticated"
	DecisionInvalid         = "invalid"
)

// Metrics collects Prometheus metrics for the backoffice.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authzDecisions  *prometheus.CounterVec
	auditEntries    *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "HTTP requests partitioned by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_authz_decisions_total",
		Help: "Permission checks partitioned by outcome.",
	}, []string{"result"})
	audit := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_audit_entries_total",
		Help: "Access log entries partitioned by outcome.",
	}, []string{"status"})
	registry.MustRegister(requests, duration, decisions, audit)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		authzDecisions:  decisions,
		auditEntries:    audit,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AuthzDecision counts one permission check outcome.
func (m *Metrics) AuthzDecision(result string) {
	if m == nil {
		return
	}
	m.authzDecisions.WithLabelValues(result).Inc()
}

// AuditWritten counts a persisted access log entry.
func (m *Metrics) AuditWritten() {
	if m == nil {
		return
	}
	m.auditEntries.WithLabelValues("written").Inc()
}

// AuditFailed counts an access log entry the sink rejected.
func (m *Metrics) AuditFailed() {
	if m == nil {
		return
	}
	m.auditEntries.WithLabelValues("failed").Inc()
}

// AuditDropped counts an access log entry discarded because the queue was full.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditEntries.WithLabelValues("dropped").Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
