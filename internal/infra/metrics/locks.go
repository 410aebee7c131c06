package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		lockAcquisitions,
		reapedPayments,
	)
}

var (
	lockAcquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_lock_acquisitions_total",
			Help: "Booking-scoped lock attempts by result (acquired/contended).",
		},
		[]string{"result"},
	)

	reapedPayments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reaper_expired_payments_total",
			Help: "Orphaned pending payments expired to failed by the reaper.",
		},
	)
)

func IncLockAcquisition(result string) {
	lockAcquisitions.WithLabelValues(norm(result)).Inc()
}

func AddReapedPayments(n int) {
	reapedPayments.Add(float64(n))
}
