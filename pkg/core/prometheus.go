package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	// blockHeight prometheus metric.
	blockHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Current index of processed block",
			Name:      "current_block_height",
			Namespace: "pesto",
		},
	)
	// txExecuted prometheus metric.
	txExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of executed transactions",
			Name:      "transactions_executed_total",
			Namespace: "pesto",
		},
	)
	// txFaulted prometheus metric.
	txFaulted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of transactions ended in FAULT state",
			Name:      "transactions_faulted_total",
			Namespace: "pesto",
		},
	)
	// contractsDeployed prometheus metric.
	contractsDeployed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of successfully deployed contracts",
			Name:      "contracts_deployed_total",
			Namespace: "pesto",
		},
	)
)

func init() {
	prometheus.MustRegister(
		blockHeight,
		txExecuted,
		txFaulted,
		contractsDeployed,
	)
}

func updateBlockHeightMetric(bHeight uint32) {
	blockHeight.Set(float64(bHeight))
}
