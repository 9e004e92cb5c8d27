package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-message and per-call measurements. A nil *Metrics is valid and records nothing.
type Metrics struct {
	messages   *prometheus.CounterVec
	phase      *prometheus.HistogramVec
	apiCalls   *prometheus.CounterVec
	apiLatency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicebot_messages_total",
			Help: "Messages handled, by outcome",
		}, []string{"outcome"}),
		phase: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoicebot_phase_duration_seconds",
			Help:    "Time spent in each phase of message handling",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicebot_invoicing_calls_total",
			Help: "Calls made against the invoicing API, by method and status (0 = no response)",
		}, []string{"method", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoicebot_invoicing_call_duration_seconds",
			Help:    "Latency of invoicing API calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.messages, m.phase, m.apiCalls, m.apiLatency)
	return m
}

// ObserveCall implements invoicing.Observer.
func (m *Metrics) ObserveCall(method, _ string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) observePhase(phase State, start time.Time) {
	if m == nil {
		return
	}
	m.phase.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) countMessage(outcome Outcome) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(string(outcome)).Inc()
}
