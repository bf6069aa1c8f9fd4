package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsignals_orders_submitted_total",
			Help: "Total number of orders accepted by the executor (by side).",
		},
		[]string{"side"},
	)

	OrdersFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsignals_orders_failed_total",
			Help: "Total number of orders the executor rejected (by side).",
		},
		[]string{"side"},
	)

	AdmissionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsignals_admission_rejections_total",
			Help: "Orders stopped by the trade gate before reaching the executor (by reason).",
		},
		[]string{"reason"},
	)

	SignalEdges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsignals_signal_edges_total",
			Help: "Rising edges of the confirmed entry signal (by side).",
		},
		[]string{"side"},
	)

	VolatilityRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qsignals_volatility_rejections_total",
			Help: "Evaluations vetoed because ATR was outside its accepted band.",
		},
	)

	StopAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsignals_stop_adjustments_total",
			Help: "Stop-loss modifications issued by the risk manager (by kind and outcome).",
		},
		[]string{"kind", "outcome"},
	)

	PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qsignals_positions_open",
			Help: "Current number of open positions per side.",
		},
		[]string{"side"},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrdersFailed,
		AdmissionRejections,
		SignalEdges,
		VolatilityRejections,
		StopAdjustments,
		PositionsOpen,
	)
}
