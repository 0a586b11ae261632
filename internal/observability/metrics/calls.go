package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CallMetrics tracks outbound calls: AI generation, retries and breaker transitions. Both the API
// and the worker register it.
type CallMetrics struct {
	service string

	aiCallsTotal       *prometheus.CounterVec
	aiCallDuration     *prometheus.HistogramVec
	retryAttemptsTotal *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

func newCallMetrics(registry *prometheus.Registry, service string) *CallMetrics {
	aiCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "calls_total",
			Help:      "Generative model calls by provider, mode and status.",
		},
		[]string{"service", "provider", "mode", "status"},
	)
	aiCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "call_duration_seconds",
			Help:      "Generative model call duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "provider"},
	)
	retryAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retry_attempts_total",
			Help:      "Retries scheduled by the resilience executor.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker of an operation is open, 0.5 half-open, 0 closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(aiCallsTotal, aiCallDuration, retryAttemptsTotal, breakerState)

	return &CallMetrics{
		service:            service,
		aiCallsTotal:       aiCallsTotal,
		aiCallDuration:     aiCallDuration,
		retryAttemptsTotal: retryAttemptsTotal,
		breakerState:       breakerState,
	}
}

func (m *CallMetrics) RecordAICall(provider, mode string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.aiCallsTotal.WithLabelValues(m.service, provider, mode, status).Inc()
	m.aiCallDuration.WithLabelValues(m.service, provider).Observe(duration.Seconds())
}

func (m *CallMetrics) RetryAttempt(operation string) {
	m.retryAttemptsTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *CallMetrics) BreakerStateChange(operation, to string) {
	value := 0.0
	switch to {
	case "open":
		value = 1
	case "half-open":
		value = 0.5
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
