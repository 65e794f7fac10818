package strategies

import (
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// MeanReversion fires when price pierces the lower Bollinger band while RSI
// is oversold. Grounded on original_source/strategies/mean_reversion.py.
type MeanReversion struct{}

func (MeanReversion) Name() string { return "mean_reversion" }

func (MeanReversion) Analyze(symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) market.StrategyOutput {
	mc := cfg.Strategies.MeanReversion
	required := mc.BBPeriod
	if mc.RSIPeriod > required {
		required = mc.RSIPeriod
	}
	required++
	if len(candles) < required {
		return hold("mean_reversion", "insufficient_data")
	}

	closes := indicators.Closes(candles)
	currentPrice := closes[len(closes)-1]

	stdDev, _ := mc.BBStdDev.Float64()
	bb := indicators.Bollinger(closes, mc.BBPeriod, stdDev)
	rsi := indicators.RSI(closes, mc.RSIPeriod)

	lowerBB := bb.Lower[len(bb.Lower)-1]
	upperBB := bb.Upper[len(bb.Upper)-1]
	currentRSI := rsi[len(rsi)-1]
	oversold, _ := mc.RSIOversold.Float64()

	out := market.StrategyOutput{
		Signal:       market.SignalHold,
		StrategyName: "mean_reversion",
		Rationale: map[string]any{
			"price": currentPrice, "lower_bb": lowerBB,
			"rsi": currentRSI, "rsi_oversold": oversold,
		},
	}

	if currentPrice <= lowerBB && currentRSI < oversold {
		out.Signal = market.SignalEnterLong

		oversoldFloor := oversold
		if oversoldFloor < 1.0 {
			oversoldFloor = 1.0
		}
		rsiDepth := clamp01((oversold - currentRSI) / oversoldFloor)

		bandWidth := upperBB - lowerBB
		bbDepth := 0.0
		if bandWidth > 0 && currentPrice < lowerBB {
			bbDepth = clamp01((lowerBB - currentPrice) / bandWidth)
		}

		confidence := rsiDepth*0.6 + bbDepth*0.4
		if confidence < 0.5 {
			confidence = 0.5
		}
		out.Confidence = confidence
	}
	return out
}
