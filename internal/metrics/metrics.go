// Package metrics holds the Prometheus collectors of the stock engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stockledger"

var (
	// StockOperations counts stock operations by operation and outcome.
	StockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_operations_total",
		Help:      "Stock operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// TxConflicts counts optimistic-concurrency conflicts that triggered a retry.
	TxConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tx_conflicts_total",
		Help:      "Transaction conflicts detected by the store.",
	})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_raised_total",
		Help:      "Stock alerts committed, by severity.",
	}, []string{"severity"})

	// OrderEventsFailed counts order events dropped after the retries ran out.
	OrderEventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_events_failed_total",
		Help:      "Order events that could not be applied, by event type.",
	}, []string{"type"})
)
