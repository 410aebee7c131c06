package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookSignatureFailures,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Canonical webhook events by gateway, kind and outcome (applied/unmatched/already_terminal).",
		},
		[]string{"gateway", "kind", "outcome"},
	)

	webhookSignatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for a bad or missing signature.",
		},
		[]string{"gateway"},
	)
)

func IncWebhookEvent(gateway, kind, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(gateway), norm(kind), norm(outcome)).Inc()
}

func IncSignatureFailure(gateway string) {
	webhookSignatureFailures.WithLabelValues(norm(gateway)).Inc()
}
