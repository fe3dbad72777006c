package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Call metrics
	callsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_concierge_calls_total",
		Help: "Total number of inbound calls greeted",
	})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_concierge_turns_total",
		Help: "Total number of conversation turns by outcome",
	}, []string{"outcome"}) // outcome: "answered", "empty", "error"

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_concierge_tts_requests_total",
		Help: "Total number of TTS synthesis requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_concierge_tts_latency_seconds",
		Help:    "TTS synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// LLM metrics
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_concierge_llm_requests_total",
		Help: "Total number of completion requests",
	}, []string{"status"})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_concierge_llm_latency_seconds",
		Help:    "Completion latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_concierge_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_concierge_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_concierge_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RecordCallStarted records an inbound call reaching the greeting.
func RecordCallStarted() {
	callsTotal.Inc()
}

// RecordTurn records one conversation turn by outcome.
func RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordTTSRequest records a synthesis attempt and its latency.
func RecordTTSRequest(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(status).Inc()
	ttsLatency.Observe(duration.Seconds())
}

// RecordLLMRequest records a completion attempt and its latency.
func RecordLLMRequest(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	llmRequests.WithLabelValues(status).Inc()
	llmLatency.Observe(duration.Seconds())
}

// RecordError records an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state gauge.
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments the circuit breaker failure counter.
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
