package strategies

import (
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// Trend follows EMA crossover confirmed by ADX strength. Grounded on
// original_source/strategies/trend.py.
type Trend struct{}

func (Trend) Name() string { return "trend" }

func (Trend) Analyze(symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) market.StrategyOutput {
	tc := cfg.Strategies.Trend
	required := tc.EMASlow
	if tc.EMAFast > required {
		required = tc.EMAFast
	}
	if required < 30 {
		required = 30
	}
	if len(candles) < required {
		return hold("trend", "insufficient_data")
	}

	closes := indicators.Closes(candles)
	emaFast := indicators.EMA(closes, tc.EMAFast)
	emaSlow := indicators.EMA(closes, tc.EMASlow)
	adx := indicators.ADX(candles, 14)

	currentFast := emaFast[len(emaFast)-1]
	currentSlow := emaSlow[len(emaSlow)-1]
	currentADX := adx[len(adx)-1]
	threshold, _ := tc.ADXThreshold.Float64()

	out := market.StrategyOutput{
		Signal:       market.SignalHold,
		StrategyName: "trend",
		Rationale: map[string]any{
			"ema_fast": currentFast, "ema_slow": currentSlow,
			"adx": currentADX, "threshold": threshold,
		},
	}
	if currentFast > currentSlow && currentADX > threshold {
		out.Signal = market.SignalEnterLong
		out.Confidence = clamp01(currentADX / 50.0)
	}
	return out
}
