package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BarsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyra_bars_completed_total",
			Help: "Total number of completed bars emitted by the aggregator.",
		},
		[]string{"instrument"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyra_orders_placed_total",
			Help: "Total number of orders handed to the gateway (by kind: entry, stop, close_all).",
		},
		[]string{"kind"},
	)

	OrdersRefused = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pyra_orders_refused_total",
			Help: "Total number of order placements refused by the gateway.",
		},
	)

	OrdersCanceled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyra_orders_canceled_total",
			Help: "Total number of cancel requests issued (by kind: entry, stop).",
		},
		[]string{"kind"},
	)

	FillsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyra_fills_processed_total",
			Help: "Total number of fills reconciled (by classification: entry, stop, anomaly).",
		},
		[]string{"kind"},
	)

	BookkeepingMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pyra_bookkeeping_mismatches_total",
			Help: "Fills whose resulting position disagreed with the externally reported one.",
		},
	)

	EquityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pyra_equity",
			Help: "Latest reported account balance.",
		},
	)

	PeakEquityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pyra_equity_peak",
			Help: "Highest account balance seen this session.",
		},
	)

	DrawdownLiquidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pyra_drawdown_liquidations_total",
			Help: "Times the drawdown kill-switch forced a close-all.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		BarsCompleted,
		OrdersPlaced,
		OrdersRefused,
		OrdersCanceled,
		FillsProcessed,
		BookkeepingMismatches,
		EquityGauge,
		PeakEquityGauge,
		DrawdownLiquidations,
	)
}
