/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counters for the write paths the operator cares about. Exposed on
  /metrics by the server.

SEE ALSO:
  - server.go: Mounts the /metrics handler
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointledger_transactions_recorded_total",
		Help: "Transactions recorded, by direction.",
	}, []string{"direction"})

	transactionsReversed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointledger_transactions_reversed_total",
		Help: "Reversal transactions appended.",
	})

	settlementTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointledger_settlement_transitions_total",
		Help: "Settlement status transitions, by target status.",
	}, []string{"to"})

	ledgerRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointledger_recomputes_total",
		Help: "Ledger summary recomputations served.",
	})

	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointledger_request_errors_total",
		Help: "Handler errors, by HTTP status class.",
	}, []string{"status"})
)
