package settlement

import "github.com/prometheus/client_golang/prometheus"

var (
	creditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sokoledger",
		Subsystem: "settlement",
		Name:      "credits_total",
		Help:      "Credits handled by outcome: posted, escrowed, or duplicate replay.",
	}, []string{"outcome"})

	debitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sokoledger",
		Subsystem: "settlement",
		Name:      "debits_total",
		Help:      "Debits posted to ledger accounts.",
	})

	sweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sokoledger",
		Subsystem: "settlement",
		Name:      "escrow_sweeps_total",
		Help:      "Escrow holdings swept into newly registered accounts.",
	})
)

func init() {
	prometheus.MustRegister(creditsTotal, debitsTotal, sweepsTotal)
}
