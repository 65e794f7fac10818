package breakers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// CheckVolatilitySpike fires when the latest candle's range exceeds an
// ATR-multiple threshold. Grounded on
// original_source/breakers/triggers.py:check_volatility_spike.
func CheckVolatilitySpike(cfg config.VolatilityBreakerConfig, candles []market.Candle, atrValues []float64) (bool, map[string]float64) {
	if !cfg.Enabled || len(candles) == 0 || len(atrValues) == 0 {
		return false, nil
	}
	currentATR := atrValues[len(atrValues)-1]
	if currentATR == 0 {
		return false, nil
	}
	last := candles[len(candles)-1]
	high, _ := last.High.Float64()
	low, _ := last.Low.Float64()
	candleRange := high - low
	multiple, _ := cfg.ATRMultiplePause.Float64()
	threshold := multiple * currentATR

	if candleRange > threshold {
		return true, map[string]float64{
			"candle_range": candleRange,
			"atr":          currentATR,
			"atr_multiple": candleRange / currentATR,
			"threshold":    threshold,
		}
	}
	return false, nil
}

// CheckSpreadSlippageSpike fires when the current spread, in basis points
// of mid price, exceeds a configured ceiling. Grounded on
// original_source/breakers/triggers.py:check_spread_slippage_spike.
func CheckSpreadSlippageSpike(cfg config.SpreadSlippageBreakerConfig, ob market.Orderbook) (bool, map[string]float64) {
	if !cfg.Enabled {
		return false, nil
	}
	mid, _ := ob.Mid().Float64()
	if mid == 0 {
		return false, nil
	}
	spread, _ := ob.Spread().Float64()
	spreadBps := (spread / mid) * 10000
	maxBps, _ := cfg.MaxSpreadBps.Float64()

	if spreadBps > maxBps {
		bestBid, _ := ob.BestBid().Float64()
		bestAsk, _ := ob.BestAsk().Float64()
		return true, map[string]float64{
			"spread_bps":     spreadBps,
			"max_spread_bps": maxBps,
			"best_bid":       bestBid,
			"best_ask":       bestAsk,
			"mid_price":      mid,
		}
	}
	return false, nil
}

// ClosedTrade is the minimal view CheckConsecutiveLosses needs from the
// repository: enough to walk the recent trade history newest-first.
type ClosedTrade struct {
	ID             string
	RealizedPnLUSD decimal.Decimal
}

// TradeHistoryProvider is satisfied by internal/persistence.Repository;
// declared locally to avoid a breakers -> persistence import cycle.
type TradeHistoryProvider interface {
	GetRecentClosedTrades(ctx context.Context, limit int) ([]ClosedTrade, error)
}

// CheckConsecutiveLosses walks the most recent closed trades newest-first
// and counts consecutive losses until the streak is broken by a winner or
// breakeven trade. Grounded on
// original_source/breakers/triggers.py:check_consecutive_losses — the
// retrieved source had a structural indentation defect around this loop;
// implemented here per the described semantics (see DESIGN.md Open
// Question #3).
func CheckConsecutiveLosses(ctx context.Context, cfg config.ConsecutiveLossesBreakerConfig, history TradeHistoryProvider) (bool, map[string]any, error) {
	if !cfg.Enabled {
		return false, nil, nil
	}

	recent, err := history.GetRecentClosedTrades(ctx, cfg.MaxLosses+5)
	if err != nil {
		return false, nil, err
	}
	if len(recent) == 0 {
		return false, nil, nil
	}

	consecutiveLosses := 0
	losingTradeIDs := make([]string, 0, cfg.MaxLosses)
	for _, trade := range recent {
		if trade.RealizedPnLUSD.IsNegative() {
			consecutiveLosses++
			losingTradeIDs = append(losingTradeIDs, trade.ID)
			continue
		}
		break
	}

	if consecutiveLosses >= cfg.MaxLosses {
		if len(losingTradeIDs) > cfg.MaxLosses {
			losingTradeIDs = losingTradeIDs[:cfg.MaxLosses]
		}
		return true, map[string]any{
			"consecutive_losses": consecutiveLosses,
			"max_losses":         cfg.MaxLosses,
			"losing_trade_ids":   losingTradeIDs,
		}, nil
	}
	return false, nil, nil
}

// CheckExchangeInstability is a stub: no live exchange health feed is
// modeled yet. Always reports no trigger, matching
// original_source/breakers/triggers.py:check_exchange_instability.
func CheckExchangeInstability(cfg config.ExchangeInstabilityBreakerConfig) (bool, map[string]int) {
	return false, nil
}
