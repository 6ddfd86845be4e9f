package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the scheduling core.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	conflictChecks    *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	materialized      prometheus.Counter
	integrityWarnings *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	conflictChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflict_checks_total",
		Help: "Conflict detector invocations by outcome",
	}, []string{"outcome"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_transitions_total",
		Help: "Meeting workflow transitions by action and outcome",
	}, []string{"action", "outcome"})

	materialized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "class_sessions_materialized_total",
		Help: "Class sessions generated from weekly timetables",
	})

	integrityWarnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "data_integrity_warnings_total",
		Help: "Integrity sweep findings by kind",
	}, []string{"kind"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, conflictChecks, transitions, materialized, integrityWarnings, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		conflictChecks:    conflictChecks,
		transitions:       transitions,
		materialized:      materialized,
		integrityWarnings: integrityWarnings,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records latency and count for a served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveConflictCheck records one detector invocation.
func (s *MetricsService) ObserveConflictCheck(conflict bool) {
	outcome := "clear"
	if conflict {
		outcome = "conflict"
	}
	s.conflictChecks.WithLabelValues(outcome).Inc()
}

// ObserveTransition records a meeting workflow transition attempt.
func (s *MetricsService) ObserveTransition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.transitions.WithLabelValues(action, outcome).Inc()
}

// AddMaterialized records generated class sessions.
func (s *MetricsService) AddMaterialized(count int) {
	if count > 0 {
		s.materialized.Add(float64(count))
	}
}

// ObserveIntegrityWarning records one integrity sweep finding.
func (s *MetricsService) ObserveIntegrityWarning(kind string) {
	s.integrityWarnings.WithLabelValues(kind).Inc()
}

// ObserveCache records a cache lookup outcome.
func (s *MetricsService) ObserveCache(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}
