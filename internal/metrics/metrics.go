// Package metrics exposes Prometheus metrics for the HTTP server and the
// cloakroom workflows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/hramba/internal/model"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec

	itemsAccepted  *prometheus.CounterVec
	itemsReturned  *prometheus.CounterVec
	intakeRejected *prometheus.CounterVec
	loginFailures  *prometheus.CounterVec
}

// New creates the collectors and registers them with a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		reqLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		itemsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hramba_items_accepted_total",
				Help: "Items accepted for storage",
			},
			[]string{"department"},
		),
		itemsReturned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hramba_items_returned_total",
				Help: "Items returned to clients",
			},
			[]string{"department"},
		),
		intakeRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hramba_intake_rejected_total",
				Help: "Refused deposits by reason",
			},
			[]string{"department", "reason"},
		),
		loginFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hramba_login_failures_total",
				Help: "Failed logins by role and reason",
			},
			[]string{"role", "reason"},
		),
	}

	m.registry.MustRegister(
		m.reqTotal, m.reqLatency,
		m.itemsAccepted, m.itemsReturned, m.intakeRejected, m.loginFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request counts and latency. Requests are labelled by
// the matched route pattern so item codes do not blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.reqTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.code)).Inc()
		m.reqLatency.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ItemAccepted counts an intake.
func (m *Metrics) ItemAccepted(item *model.Item) {
	m.itemsAccepted.WithLabelValues(string(item.Department)).Inc()
}

// IntakeRejected counts a refused deposit.
func (m *Metrics) IntakeRejected(department model.Department, reason string) {
	if !department.Valid() {
		department = "unknown"
	}
	m.intakeRejected.WithLabelValues(string(department), reason).Inc()
}

// ItemReturned counts a return.
func (m *Metrics) ItemReturned(item *model.Item) {
	m.itemsReturned.WithLabelValues(string(item.Department)).Inc()
}

// LoginFailed counts a refused login.
func (m *Metrics) LoginFailed(role, reason string) {
	if !model.ValidRole(role) {
		role = "unknown"
	}
	m.loginFailures.WithLabelValues(role, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}
