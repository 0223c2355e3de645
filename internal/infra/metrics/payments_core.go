package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		amountMismatchTotal,
		expirySweepTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment transitions by method and resulting status.",
		},
		[]string{"method", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_cents_total",
			Help: "Total minor-unit value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	amountMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_amount_mismatch_total",
			Help: "Success notifications whose reported amount differed from the stored payment.",
		},
	)

	expirySweepTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_expired_by_sweep_total",
			Help: "Pending payments moved to expired by the background sweep.",
		},
	)
)

func IncPayment(method, status string) {
	paymentsTotal.WithLabelValues(norm(method), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amountCents int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountCents))
}

func IncAmountMismatch() { amountMismatchTotal.Inc() }

func AddSweepExpired(n int) { expirySweepTotal.Add(float64(n)) }
