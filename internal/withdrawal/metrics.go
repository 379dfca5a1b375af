package withdrawal

import "github.com/prometheus/client_golang/prometheus"

var processedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sokoledger",
	Subsystem: "withdrawal",
	Name:      "processed_total",
	Help:      "Withdrawal requests processed by decision.",
}, []string{"decision"})

func init() {
	prometheus.MustRegister(processedTotal)
}
