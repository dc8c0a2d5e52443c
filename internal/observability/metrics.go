package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wacast_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wacast_enqueue_total", Help: "SQS enqueue results"},
		[]string{"result"},
	)
	BroadcastRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wacast_broadcast_runs_total", Help: "Broadcast run outcomes"},
		[]string{"result"},
	)
	SendAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wacast_send_attempts_total", Help: "Per-attempt channel send results"},
		[]string{"result"},
	)
	SendOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wacast_send_outcomes_total", Help: "Per-recipient final outcomes"},
		[]string{"status"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "wacast_send_latency_seconds", Help: "Channel send latency"},
	)
	GuardChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wacast_guard_checks_total", Help: "Connection guard results"},
		[]string{"result"},
	)
	InputErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wacast_input_errors_total", Help: "Rows rejected before dispatch"},
	)
	MessageLogErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wacast_message_log_errors_total", Help: "Message log sink write failures"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, BroadcastRuns, SendAttempts, SendOutcomes, SendLatency, GuardChecks, InputErrors, MessageLogErrors)
}
