package backtest

import "github.com/prometheus/client_golang/prometheus"

// Replay metrics, served at /metrics when a listen address is configured.
var (
	mtxEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_events_total",
			Help: "Market data events processed",
		},
		[]string{"kind"},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_orders_total",
			Help: "Orders admitted from the strategy",
		},
		[]string{"variant", "side"},
	)

	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Simulated executions",
		},
		[]string{"liquidity"}, // maker|taker
	)

	mtxBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backtest_balance",
			Help: "Current balance per market",
		},
		[]string{"market"},
	)
)

func init() {
	prometheus.MustRegister(mtxEvents, mtxOrders, mtxTrades, mtxBalance)
}
