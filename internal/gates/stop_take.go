package gates

import (
	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

// ComputeStopLoss returns the stop-loss price for a long entry at
// entryPrice, either a fixed percentage below entry or entry minus
// atr*multiplier. Grounded on original_source/risk/stop_loss.py.
func ComputeStopLoss(cfg config.StopLossConfig, entryPrice decimal.Decimal, atrValue float64) decimal.Decimal {
	if cfg.Method == config.StopLossATR {
		atrDec := decimal.NewFromFloat(atrValue)
		return entryPrice.Sub(atrDec.Mul(cfg.ATRMultiplier))
	}
	pct := cfg.FixedPct.Div(decimal.NewFromInt(100))
	return entryPrice.Mul(decimal.NewFromInt(1).Sub(pct))
}

// ComputeTakeProfit returns the take-profit price for a long entry, either
// a fixed percentage above entry or entry plus risk*reward_ratio where risk
// is entry-stopLoss. Grounded on original_source/risk/take_profit.py.
func ComputeTakeProfit(cfg config.TakeProfitConfig, entryPrice, stopLoss decimal.Decimal) decimal.Decimal {
	if cfg.Method == config.TakeProfitRiskRewardRatio {
		riskDistance := entryPrice.Sub(stopLoss)
		return entryPrice.Add(riskDistance.Mul(cfg.RiskRewardRatio))
	}
	pct := cfg.FixedPct.Div(decimal.NewFromInt(100))
	return entryPrice.Mul(decimal.NewFromInt(1).Add(pct))
}
