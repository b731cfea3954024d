package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/resilience"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ExternalErrors     *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	RetryAttempts      *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_requests_total",
				Help: "Total number of requests by operation, option, and status",
			},
			[]string{"operation", "option", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freight_request_duration_seconds",
				Help:    "Request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ExternalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_external_errors_total",
				Help: "Total external service errors by service and error type",
			},
			[]string{"service", "error_type"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "freight_circuit_breaker_state",
				Help: "Circuit breaker state by service (0 closed, 1 half-open, 2 open)",
			},
			[]string{"service"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_circuit_breaker_transitions_total",
				Help: "Circuit breaker state transitions by service and target state",
			},
			[]string{"service", "to"},
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_retry_attempts_total",
				Help: "Retries issued by service",
			},
			[]string{"service"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_cache_lookups_total",
				Help: "Cache lookups by service and result",
			},
			[]string{"service", "result"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, option, status string, duration float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, option, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration)
}

// RecordError records an external service error, labelled by its code.
func (m *Metrics) RecordError(err error) {
	if m == nil || err == nil {
		return
	}
	var fe *freight.Error
	if !errors.As(err, &fe) || fe.Kind != freight.KindExternalService {
		return
	}
	m.ExternalErrors.WithLabelValues(fe.Service, fe.Code).Inc()
}

// RecordBreakerState records a breaker transition.
func (m *Metrics) RecordBreakerState(service string, _, to resilience.CircuitBreakerState) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(service).Set(float64(to))
	m.BreakerTransitions.WithLabelValues(service, to.String()).Inc()
}

// RecordRetry counts one retry.
func (m *Metrics) RecordRetry(service string, _ int, _ error) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(service).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(service string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(service, result).Inc()
}

// Hooks routes provider events into these metrics.
func (m *Metrics) Hooks() freight.Hooks {
	return freight.Hooks{
		OnRetry:       m.RecordRetry,
		OnStateChange: m.RecordBreakerState,
		OnCacheLookup: m.RecordCacheLookup,
	}
}
