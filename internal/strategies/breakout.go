package strategies

import (
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// Breakout fires when price clears the prior Donchian high by an ATR-scaled
// margin. Grounded on original_source/strategies/breakout.py.
type Breakout struct{}

func (Breakout) Name() string { return "breakout" }

func (Breakout) Analyze(symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) market.StrategyOutput {
	bc := cfg.Strategies.Breakout
	required := bc.DonchianPeriod
	if bc.ATRPeriod > required {
		required = bc.ATRPeriod
	}
	required += 2
	if len(candles) < required {
		return hold("breakout", "insufficient_data")
	}

	closes := indicators.Closes(candles)
	currentPrice := closes[len(closes)-1]

	donchian := indicators.Donchian(candles, bc.DonchianPeriod)
	atr := indicators.ATR(candles, bc.ATRPeriod)

	// Previous (closed) Donchian high: index -2, since -1 is the still-
	// forming current candle.
	prevHigh := donchian.High[len(donchian.High)-2]
	currentATR := atr[len(atr)-1]
	filterMult, _ := bc.ATRFilterMult.Float64()

	breakoutLevel := prevHigh + currentATR*filterMult

	out := market.StrategyOutput{
		Signal:       market.SignalHold,
		StrategyName: "breakout",
		Rationale: map[string]any{
			"price": currentPrice, "prev_donchian_high": prevHigh,
			"atr": currentATR, "breakout_level": breakoutLevel,
		},
	}

	if currentPrice > breakoutLevel {
		out.Signal = market.SignalEnterLong
		if currentATR > 0 {
			excess := (currentPrice - breakoutLevel) / currentATR
			out.Confidence = clamp01(0.5 + excess*0.5)
		} else {
			out.Confidence = 0.5
		}
	}
	return out
}
