package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhooksTotal,
		invoicesTotal,
	)
}

var (
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_total",
			Help: "Inbound notifications by provider and outcome (applied/replay/unmatched/expired/rejected).",
		},
		[]string{"provider", "outcome"},
	)

	invoicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_total",
			Help: "Invoice generation attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func IncWebhook(provider, outcome string) {
	webhooksTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func IncInvoice(outcome string) {
	invoicesTotal.WithLabelValues(norm(outcome)).Inc()
}
