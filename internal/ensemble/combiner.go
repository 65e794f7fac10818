// Package ensemble combines the four strategy outputs into one consensus
// Signal, in agreement or weighted mode. Grounded on
// original_source/strategies/ensemble.py.
package ensemble

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/strategies"
)

// decimalOr returns override.Float64() when present and the override map
// had a hit, else the global default.
func decimalOr(hasOverride bool, override *decimal.Decimal, dflt decimal.Decimal) float64 {
	if hasOverride && override != nil {
		v, _ := override.Float64()
		return v
	}
	v, _ := dflt.Float64()
	return v
}

// Combiner runs the fixed strategy set and folds their outputs into a
// consensus signal.
type Combiner struct {
	strategies []strategies.Strategy
}

func New() *Combiner {
	return &Combiner{
		strategies: []strategies.Strategy{
			strategies.Trend{},
			strategies.MeanReversion{},
			strategies.Breakout{},
			strategies.VWAPReversion{},
		},
	}
}

// resolvedParams is the per-symbol effective ensemble configuration after
// folding in per_coin_overrides.
type resolvedParams struct {
	weightTrend, weightMeanReversion, weightBreakout, weightVWAP float64
	minAgreement                                                 int
	confidenceThreshold, weightedThreshold                       float64
}

// Analyze runs every strategy (catching panics as a HOLD output, matching
// the Python combiner's try/except-per-strategy isolation) and folds the
// results via the configured mode.
func (c *Combiner) Analyze(symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) market.Signal {
	outputs := make([]market.StrategyOutput, 0, len(c.strategies))
	for _, s := range c.strategies {
		outputs = append(outputs, c.safeAnalyze(s, symbol, candles, ob, cfg))
	}

	params := resolveParams(symbol, cfg)
	ensembleCfg := cfg.Strategies.Ensemble

	var signal market.Signal
	var err error
	if ensembleCfg.Mode == config.EnsembleModeWeighted {
		signal, err = weightedConsensus(symbol, outputs, params)
	} else {
		signal, err = agreementConsensus(symbol, outputs, params)
	}
	if err != nil {
		// Confidence validation can only fail on a programming error in the
		// strategies themselves; degrade to a safe HOLD rather than panic
		// the tick loop.
		signal = market.Signal{Type: market.SignalHold, Symbol: symbol, StrategyOutputs: outputs}
	}
	return signal
}

func (c *Combiner) safeAnalyze(s strategies.Strategy, symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) (out market.StrategyOutput) {
	defer func() {
		if r := recover(); r != nil {
			out = market.StrategyOutput{
				Signal:       market.SignalHold,
				StrategyName: s.Name(),
				Rationale:    map[string]any{"error": r},
			}
		}
	}()
	return s.Analyze(symbol, candles, ob, cfg)
}

func resolveParams(symbol string, cfg config.BotConfig) resolvedParams {
	ec := cfg.Strategies.Ensemble
	cleanSym := strings.ReplaceAll(strings.ReplaceAll(symbol, "/USDT", ""), "_USDT", "")

	override, ok := ec.PerCoinOverrides[cleanSym]
	if !ok {
		override, ok = ec.PerCoinOverrides[symbol]
	}

	p := resolvedParams{
		minAgreement: ec.MinAgreement,
	}
	p.weightTrend = decimalOr(ok, override.WeightTrend, ec.WeightTrend)
	p.weightMeanReversion = decimalOr(ok, override.WeightMeanReversion, ec.WeightMeanReversion)
	p.weightBreakout = decimalOr(ok, override.WeightBreakout, ec.WeightBreakout)
	p.weightVWAP = decimalOr(ok, override.WeightVWAP, ec.WeightVWAP)

	if ok && override.MinAgreement != nil {
		p.minAgreement = *override.MinAgreement
	}
	confThresh, _ := ec.ConfidenceThreshold.Float64()
	if ok && override.ConfidenceThreshold != nil {
		confThresh, _ = override.ConfidenceThreshold.Float64()
	}
	p.confidenceThreshold = confThresh

	weightedThresh, _ := ec.WeightedThreshold.Float64()
	if ok && override.WeightedThreshold != nil {
		weightedThresh, _ = override.WeightedThreshold.Float64()
	}
	p.weightedThreshold = weightedThresh

	return p
}

func agreementConsensus(symbol string, outputs []market.StrategyOutput, p resolvedParams) (market.Signal, error) {
	votes := 0
	confSum := 0.0
	for _, out := range outputs {
		if out.Signal == market.SignalEnterLong && out.Confidence >= p.confidenceThreshold {
			votes++
			confSum += out.Confidence
		}
	}

	finalSignal := market.SignalHold
	avgConfidence := 0.0
	if votes >= p.minAgreement {
		finalSignal = market.SignalEnterLong
		if votes > 0 {
			avgConfidence = confSum / float64(votes)
		}
	}
	return market.NewSignal(finalSignal, symbol, avgConfidence, outputs)
}

func weightedConsensus(symbol string, outputs []market.StrategyOutput, p resolvedParams) (market.Signal, error) {
	weightOf := func(strategyName string) float64 {
		switch strategyName {
		case "trend":
			return p.weightTrend
		case "mean_reversion":
			return p.weightMeanReversion
		case "breakout":
			return p.weightBreakout
		case "vwap_reversion":
			return p.weightVWAP
		default:
			return 0
		}
	}

	totalScore := 0.0
	totalWeight := 0.0
	for _, out := range outputs {
		w := weightOf(out.StrategyName)
		if out.Signal == market.SignalEnterLong && out.Confidence > 0 {
			totalScore += w * out.Confidence
		}
		totalWeight += w
	}

	normalized := 0.0
	if totalWeight > 0 {
		normalized = totalScore / totalWeight
	}

	finalSignal := market.SignalHold
	if normalized >= p.weightedThreshold {
		finalSignal = market.SignalEnterLong
	}
	return market.NewSignal(finalSignal, symbol, normalized, outputs)
}
