package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	payrollRuns      *prometheus.CounterVec
	payrollItems     prometheus.Counter
	payrollDuration  prometheus.Histogram
	recoveryScans    *prometheus.CounterVec
	recoveryDuration prometheus.Histogram
}

// NewMetrics initialises the registry with HTTP and domain collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vedartha_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vedartha_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vedartha_payroll_runs_total",
		Help: "Payroll runs by outcome.",
	}, []string{"outcome"})
	items := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vedartha_payroll_items_total",
		Help: "Payroll items committed.",
	})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vedartha_payroll_run_duration_seconds",
		Help:    "Payroll run duration including the commit.",
		Buckets: prometheus.DefBuckets,
	})
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vedartha_recovery_scans_total",
		Help: "Authenticity code recoveries by winning strategy and outcome.",
	}, []string{"strategy", "outcome"})
	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vedartha_recovery_duration_seconds",
		Help:    "Time spent scanning one capture.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	})
	registry.MustRegister(requests, duration, runs, items, runDuration, scans, scanDuration)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		payrollRuns:      runs,
		payrollItems:     items,
		payrollDuration:  runDuration,
		recoveryScans:    scans,
		recoveryDuration: scanDuration,
	}
}

// Handler returns the /metrics endpoint handler.
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

// ObservePayrollRun records one payroll run attempt.
func (m *Metrics) ObservePayrollRun(outcome string, items int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.payrollRuns.WithLabelValues(outcome).Inc()
	if outcome == "committed" {
		m.payrollItems.Add(float64(items))
	}
	m.payrollDuration.Observe(elapsed.Seconds())
}

// ObserveRecovery records one capture scan.
func (m *Metrics) ObserveRecovery(strategy, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.recoveryScans.WithLabelValues(strategy, outcome).Inc()
	m.recoveryDuration.Observe(elapsed.Seconds())
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
