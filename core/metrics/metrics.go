package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Incoming Telegram updates by content kind.",
		},
		[]string{"kind"},
	)

	flowsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_started_total",
			Help: "Conversations started per flow.",
		},
		[]string{"flow"},
	)

	flowsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_finished_total",
			Help: "Conversations finished per flow and outcome (completed/superseded/faulted/reaped).",
		},
		[]string{"flow", "outcome"},
	)

	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flow_steps_total",
			Help: "Step handler executions per flow and step.",
		},
		[]string{"flow", "step"},
	)

	expiredMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_expired_messages_total",
			Help: "Interactive messages invalidated by the transient tracker.",
		},
	)

	routeLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_route_latency_ms",
			Help:    "Envelope routing latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
		[]string{"flow"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			updatesTotal, flowsStartedTotal, flowsFinishedTotal,
			stepsTotal, expiredMessagesTotal, routeLatencyMs,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IncUpdate counts one incoming update of the given content kind.
func IncUpdate(kind string) {
	updatesTotal.WithLabelValues(norm(kind)).Inc()
}

// IncFlowStarted counts one conversation start.
func IncFlowStarted(flow string) {
	flowsStartedTotal.WithLabelValues(norm(flow)).Inc()
}

// IncFlowFinished counts one conversation end with its outcome.
func IncFlowFinished(flow, outcome string) {
	flowsFinishedTotal.WithLabelValues(norm(flow), norm(outcome)).Inc()
}

// IncStep counts one step handler execution.
func IncStep(flow, step string) {
	stepsTotal.WithLabelValues(norm(flow), norm(step)).Inc()
}

// IncExpired counts invalidated interactive messages.
func IncExpired(n int) {
	expiredMessagesTotal.Add(float64(n))
}

// ObserveRoute records routing latency for a flow.
func ObserveRoute(flow string, latencyMs float64) {
	routeLatencyMs.WithLabelValues(norm(flow)).Observe(latencyMs)
}
