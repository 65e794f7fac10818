package gates

import (
	"context"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// RegimeState is the classification a symbol's recent candles fall into.
// Grounded on original_source/gates/regime_filter.py:RegimeState.
type RegimeState string

const (
	RegimeTrending RegimeState = "TRENDING"
	RegimeRanging  RegimeState = "RANGING"
	RegimeVolatile RegimeState = "VOLATILE"
	RegimeQuiet    RegimeState = "QUIET"
	RegimeUnknown  RegimeState = "UNKNOWN"
)

// strategyRegimeMap lists, per strategy family, the regimes a strategy of
// that family is allowed to enter in. Grounded on
// original_source/gates/regime_filter.py:_STRATEGY_REGIME_MAP.
var strategyRegimeMap = map[string]map[RegimeState]bool{
	"momentum":       {RegimeTrending: true, RegimeVolatile: true},
	"trend":          {RegimeTrending: true},
	"mean_reversion": {RegimeRanging: true, RegimeVolatile: true},
	"grid":           {RegimeRanging: true, RegimeVolatile: true, RegimeTrending: true},
	"breakout":       {RegimeVolatile: true, RegimeTrending: true},
	"default":        {RegimeTrending: true, RegimeVolatile: true},
}

// ClassifyRegime reports the current market regime for a symbol's candles,
// using ADX for trend strength and ATR% for volatility. Returns UNKNOWN when
// there isn't enough history to trust the indicators (mirrors the Python
// gate's `len(candles) < adx_period+20` guard).
func ClassifyRegime(cfg config.RegimeConfig, candles []market.Candle) RegimeState {
	if len(candles) < cfg.ADXPeriod+20 {
		return RegimeUnknown
	}

	adxSeries := indicators.ADX(candles, cfg.ADXPeriod)
	atrPctSeries := indicators.ATRPercent(candles, cfg.ADXPeriod)
	adx := adxSeries[len(adxSeries)-1]
	atrPct := atrPctSeries[len(atrPctSeries)-1]

	adxThreshold, _ := cfg.ADXThreshold.Float64()
	atrThreshold, _ := cfg.ATRPctThreshold.Float64()

	isTrending := adx >= adxThreshold
	isVolatile := atrPct >= atrThreshold

	switch {
	case isTrending:
		return RegimeTrending
	case isVolatile:
		return RegimeVolatile
	case atrPct < atrThreshold*0.5:
		return RegimeQuiet
	default:
		return RegimeRanging
	}
}

// RegimeFilterGate is entry-gate step 3 (spec.md §4.4): rejects entries
// whose classified regime is not in the allowed set for the configured
// strategy family (or is QUIET, which no family allows).
type RegimeFilterGate struct {
	cfg      config.RegimeConfig
	provider MarketDataProvider
}

func NewRegimeFilterGate(cfg config.RegimeConfig, provider MarketDataProvider) *RegimeFilterGate {
	return &RegimeFilterGate{cfg: cfg, provider: provider}
}

func (g *RegimeFilterGate) Name() string { return "regime_filter" }

func (g *RegimeFilterGate) Evaluate(ctx context.Context, symbol string) Result {
	if !g.cfg.Enabled {
		return Allow()
	}

	cfg := g.cfg
	if override, ok := g.cfg.PerSymbolOverride[symbol]; ok {
		cfg = override
	}

	candles, err := g.provider.GetCandles(ctx, symbol, cfg.ADXPeriod+20)
	if err != nil {
		return Reject("failed to load candles for regime classification: "+err.Error(), nil)
	}

	regime := ClassifyRegime(cfg, candles)
	if regime == RegimeUnknown {
		return Allow()
	}

	family := cfg.StrategyFamily
	if family == "" {
		family = "default"
	}
	allowed := strategyRegimeMap[family]
	if allowed == nil {
		allowed = strategyRegimeMap["default"]
	}

	if !allowed[regime] {
		return Reject("regime "+string(regime)+" not allowed for strategy family "+family, map[string]any{
			"regime": string(regime), "strategy_family": family,
		})
	}
	return Allow()
}
