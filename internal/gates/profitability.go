package gates

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// ProfitabilityGate is entry-gate step 10, the final gate (spec.md §4.4):
// rejects a sized entry whose expected net profit at take-profit, after
// fees/slippage/spread, falls below execution.min_profit_usd. Grounded on
// original_source/gates/profitability_gate.py.
//
// It reuses PositionSizerGate's sizing so the two gates never disagree on
// entry price/stop/take-profit/quantity for the same tick.
type ProfitabilityGate struct {
	sizerGate  *PositionSizerGate
	executionCfg config.ExecutionConfig
}

func NewProfitabilityGate(sizerGate *PositionSizerGate, executionCfg config.ExecutionConfig) *ProfitabilityGate {
	return &ProfitabilityGate{sizerGate: sizerGate, executionCfg: executionCfg}
}

func (g *ProfitabilityGate) Name() string { return "profitability" }

func (g *ProfitabilityGate) Evaluate(ctx context.Context, symbol string) Result {
	sized := g.sizerGate.Evaluate(ctx, symbol)
	if !sized.Allowed {
		return sized
	}

	entryPrice := sized.Payload["entry_price"].(decimal.Decimal)
	takeProfit := sized.Payload["take_profit"].(decimal.Decimal)
	quantity := sized.Payload["quantity"].(decimal.Decimal)
	ob := sized.Payload["orderbook"].(market.Orderbook)

	notional := entryPrice.Mul(quantity)
	fee := CalculateFee(notional, g.executionCfg.TakerFeeBps)
	_, slippageCost, err := CalculateSlippage(market.SideBuy, quantity, ob)
	if err != nil {
		return Reject("failed to estimate slippage: "+err.Error(), nil)
	}
	spreadCost := CalculateSpreadCost(market.SideBuy, quantity, ob)

	grossProfit := takeProfit.Sub(entryPrice).Mul(quantity)
	exitFee := CalculateFee(takeProfit.Mul(quantity), g.executionCfg.TakerFeeBps)
	netProfit := grossProfit.Sub(fee).Sub(exitFee).Sub(slippageCost).Sub(spreadCost)

	if netProfit.LessThan(g.executionCfg.MinProfitUSD) {
		return Reject("estimated net profit below minimum", map[string]any{
			"net_profit_usd": netProfit, "min_profit_usd": g.executionCfg.MinProfitUSD,
		})
	}

	payload := map[string]any{
		"entry_price": entryPrice, "take_profit": takeProfit, "quantity": quantity,
		"stop_loss": sized.Payload["stop_loss"],
		"est_fee_usd": fee.Add(exitFee), "est_slippage_usd": slippageCost, "est_spread_cost_usd": spreadCost,
		"net_profit_usd": netProfit,
	}
	return Result{Allowed: true, Payload: payload}
}
