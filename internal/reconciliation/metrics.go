package reconciliation

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sokoledger",
		Subsystem: "reconciliation",
		Name:      "runs_total",
		Help:      "Completed reconciliation runs.",
	})

	runErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sokoledger",
		Subsystem: "reconciliation",
		Name:      "errors_total",
		Help:      "Total reconciliation run errors.",
	})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sokoledger",
		Subsystem: "reconciliation",
		Name:      "run_duration_seconds",
		Help:      "Duration of reconciliation runs in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	differenceGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sokoledger",
		Subsystem: "reconciliation",
		Name:      "cash_difference",
		Help:      "Collected-minus-deposited difference from the courier's last run.",
	}, []string{"courier_id"})
)

func init() {
	prometheus.MustRegister(runsTotal, runErrors, runDuration, differenceGauge)
}
