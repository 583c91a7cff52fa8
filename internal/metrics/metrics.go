// Package metrics holds the Prometheus collectors for the back-office.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthzDecisionsTotal *prometheus.CounterVec
	MutationsTotal      *prometheus.CounterVec

	TickRunsTotal         *prometheus.CounterVec
	TickDuration          prometheus.Histogram
	TemplatesScannedTotal prometheus.Counter
	TransactionsCreated   prometheus.Counter
	TemplatesFinished     prometheus.Counter
}

// New creates and registers all metrics on a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry creates and registers all metrics on registry.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authz_decisions_total",
				Help:      "Authorization decisions by guard and outcome",
			},
			[]string{"guard", "outcome"},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Mutations by resource, operation and result class",
			},
			[]string{"resource", "op", "result"},
		),
		TickRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recurring_tick_runs_total",
				Help:      "Recurring transaction ticks by outcome",
			},
			[]string{"outcome"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recurring_tick_duration_seconds",
				Help:      "Duration of recurring transaction ticks",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TemplatesScannedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_templates_scanned_total",
			Help:      "Recurring templates examined by ticks",
		}),
		TransactionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_transactions_created_total",
			Help:      "Transactions materialized from recurring templates",
		}),
		TemplatesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_templates_finished_total",
			Help:      "Recurring templates moved to finished by ticks",
		}),
	}
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.MutationsTotal,
		m.TickRunsTotal,
		m.TickDuration,
		m.TemplatesScannedTotal,
		m.TransactionsCreated,
		m.TemplatesFinished,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAuthz records an authorization decision.
func (m *Metrics) ObserveAuthz(guard string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(guard, outcome).Inc()
}

// ObserveMutation records a mutation result class ("ok", "validation", ...).
func (m *Metrics) ObserveMutation(resource, op, result string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(resource, op, result).Inc()
}

// ObserveTick records one scheduler run.
func (m *Metrics) ObserveTick(scanned, created, finished int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.TickRunsTotal.WithLabelValues(outcome).Inc()
	m.TickDuration.Observe(elapsed.Seconds())
	m.TemplatesScannedTotal.Add(float64(scanned))
	m.TransactionsCreated.Add(float64(created))
	m.TemplatesFinished.Add(float64(finished))
}

// ObserveSkippedTick records a run that did not get the job lock.
func (m *Metrics) ObserveSkippedTick() {
	if m == nil {
		return
	}
	m.TickRunsTotal.WithLabelValues("skipped").Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests. Routes are labelled with the mux pattern
// that matches the request so path parameters do not explode cardinality.
func (m *Metrics) Middleware(mux *http.ServeMux) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := "unmatched"
			if mux != nil {
				if _, pattern := mux.Handler(r); pattern != "" {
					route = pattern
				}
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
