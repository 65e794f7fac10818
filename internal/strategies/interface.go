// Package strategies implements the four pure strategy functions the
// ensemble combiner runs every tick, grounded on original_source/strategies/*.py.
package strategies

import (
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// Strategy is a pure function of market data and config to a StrategyOutput.
// Never mutates state, never fails — a failing implementation is caught by
// the ensemble combiner and mapped to a HOLD output (spec.md §4.6).
type Strategy interface {
	Name() string
	Analyze(symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) market.StrategyOutput
}

func hold(name, reason string) market.StrategyOutput {
	return market.StrategyOutput{
		Signal:       market.SignalHold,
		Confidence:   0,
		StrategyName: name,
		Rationale:    map[string]any{"reason": reason},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
