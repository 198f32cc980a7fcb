package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcilePassDuration tracks the latency of full reconciliation passes.
	ReconcilePassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cartpromo_reconcile_pass_duration_seconds",
			Help: "Duration of cart reconciliation passes in seconds",
			Buckets: []float64{
				0.005,
				0.01,
				0.025,
				0.05,
				0.1,
				0.25,
				0.5,
				1.0,
				2.5,
				5.0,
				10.0,
			},
		},
		[]string{"result"}, // completed, aborted, suspended
	)

	// CartMutations counts mutations the reconciler issues against the cart.
	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartpromo_cart_mutations_total",
			Help: "Cart mutations issued by the reconciler",
		},
		[]string{"verb"}, // add, change, remove
	)

	// PlannedOperations counts discount operations emitted per planning pass.
	PlannedOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartpromo_planned_operations_total",
			Help: "Discount operations emitted by planning passes",
		},
		[]string{"kind"}, // order, product, delivery
	)
)

// RecordReconcilePass records one finished reconciliation pass.
func RecordReconcilePass(result string, seconds float64) {
	ReconcilePassDuration.WithLabelValues(result).Observe(seconds)
}

// RecordCartMutation records one cart mutation by verb.
func RecordCartMutation(verb string) {
	CartMutations.WithLabelValues(verb).Inc()
}

// RecordPlannedOperations records emitted operations by kind.
func RecordPlannedOperations(kind string, n int) {
	if n > 0 {
		PlannedOperations.WithLabelValues(kind).Add(float64(n))
	}
}
