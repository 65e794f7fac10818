package strategies

import (
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// VWAPReversion fires on a VWAP-deviation dip confirmed by oversold RSI and
// (optionally) a rising smoothed OBV. Grounded on
// original_source/strategies/vwap_reversion.py.
type VWAPReversion struct{}

func (VWAPReversion) Name() string { return "vwap_reversion" }

func (VWAPReversion) Analyze(symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) market.StrategyOutput {
	vc := cfg.Strategies.VWAPReversion
	if !vc.Enabled {
		return hold("vwap_reversion", "disabled")
	}

	required := vc.RSIPeriod + 1
	if required < 5 {
		required = 5
	}
	if len(candles) < required {
		return hold("vwap_reversion", "insufficient_data")
	}

	vwap := indicators.VWAP(candles)
	currentVWAP := vwap[len(vwap)-1]
	if currentVWAP <= 0 {
		return hold("vwap_reversion", "invalid_vwap")
	}

	closes := indicators.Closes(candles)
	currentPrice := closes[len(closes)-1]

	rsi := indicators.RSI(closes, vc.RSIPeriod)
	currentRSI := rsi[len(rsi)-1]

	obv := indicators.OBV(candles)
	obvRising := obvTrendRising(obv)

	deviationPct := ((currentVWAP - currentPrice) / currentVWAP) * 100.0

	entryThreshold, _ := vc.DeviationEntryPct.Float64()
	oversold, _ := vc.RSIOversold.Float64()

	priceBelowVWAP := deviationPct >= entryThreshold
	rsiOversold := currentRSI > 0 && currentRSI < oversold
	obvOK := !vc.OBVConfirmation || obvRising

	out := market.StrategyOutput{
		Signal:       market.SignalHold,
		StrategyName: "vwap_reversion",
		Rationale: map[string]any{
			"price": currentPrice, "vwap": currentVWAP,
			"deviation_pct": deviationPct, "rsi": currentRSI,
			"obv_rising": obvRising, "entry_threshold_pct": entryThreshold,
		},
	}

	if priceBelowVWAP && rsiOversold && obvOK {
		out.Signal = market.SignalEnterLong

		devScore := clamp01(deviationPct / (entryThreshold * 2))
		rsiScore := 0.5
		if oversold > 0 {
			rsiScore = (oversold - currentRSI) / oversold
		}
		confidence := (devScore + rsiScore) / 2.0
		if confidence < 0.5 {
			confidence = 0.5
		}
		out.Confidence = confidence
	}
	return out
}

// obvTrendRising compares a smoothed 3-candle OBV average against the
// preceding 3-candle average (less noisy than a raw last-two comparison);
// falls back to a 2-point comparison or false when history is too short.
func obvTrendRising(obv []float64) bool {
	n := len(obv)
	switch {
	case n >= 6:
		recent := (obv[n-1] + obv[n-2] + obv[n-3]) / 3.0
		prior := (obv[n-4] + obv[n-5] + obv[n-6]) / 3.0
		return recent > prior
	case n >= 2:
		return obv[n-1] > obv[n-2]
	default:
		return false
	}
}
