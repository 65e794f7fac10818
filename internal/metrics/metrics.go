// Package metrics exposes the engine's Prometheus series. Grounded on
// chidi150c-coinbase/metrics.go: CounterVec/Gauge vars registered in
// init(), one labeled family per observable, served at /metrics by the
// composition root's HTTP mux.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_orders_total", Help: "Orders placed"},
		[]string{"mode", "side"}, // mode: dry_run|live
	)

	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_decisions_total", Help: "Ensemble signals produced"},
		[]string{"signal"}, // HOLD|ENTER_LONG|EXIT
	)

	EquityUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_equity_usd", Help: "Current account equity in USD"},
	)

	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_trades_total", Help: "Closed trades by result"},
		[]string{"result"}, // win|loss|breakeven
	)

	ExitReasonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_exit_reasons_total", Help: "Exits split by reason"},
		[]string{"reason"}, // stop_loss|take_profit|trailing_stop
	)

	GateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_gate_rejections_total", Help: "Entry-gate rejections by gate name"},
		[]string{"gate"},
	)

	BreakerTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_breaker_triggers_total", Help: "Circuit breaker trips by type"},
		[]string{"breaker_type"},
	)

	DailyLockEngagedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_daily_lock_engaged_total", Help: "Times the daily lock engaged"},
	)

	BotStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "bot_state", Help: "Bot control-plane state indicator (1 for the active state, 0 otherwise)"},
		[]string{"state"}, // STOPPED|ARMED|RUNNING|PAUSED_ENTRIES
	)

	TickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "bot_tick_duration_seconds", Help: "Per-symbol trading-loop tick latency"},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersTotal, DecisionsTotal, EquityUSD, TradesTotal, ExitReasonsTotal,
		GateRejectionsTotal, BreakerTriggersTotal, DailyLockEngagedTotal,
		BotStateGauge, TickDurationSeconds,
	)
}

// SetBotState flips the single active state's series to 1 and every other
// state to 0, the multi-series-gauge pattern chidi150c-coinbase/metrics.go
// uses for SetModelModeMetric.
func SetBotState(active string, allStates []string) {
	for _, s := range allStates {
		if s == active {
			BotStateGauge.WithLabelValues(s).Set(1)
		} else {
			BotStateGauge.WithLabelValues(s).Set(0)
		}
	}
}
