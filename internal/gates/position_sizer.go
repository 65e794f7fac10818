package gates

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/risk"
)

// EquityProvider reports current account equity in USD. Satisfied by
// internal/persistence.Repository (or a paper-trading ledger).
type EquityProvider interface {
	GetEquityUSD(ctx context.Context) (decimal.Decimal, error)
}

// PositionSizerGate is entry-gate step 9 (spec.md §4.4): computes the
// proposed stop-loss, take-profit, and quantity for the entry, rejecting
// when the sizer returns a non-positive quantity (e.g. a degenerate
// zero-distance stop — see DESIGN.md Open Question #2).
type PositionSizerGate struct {
	stopLossCfg   config.StopLossConfig
	takeProfitCfg config.TakeProfitConfig
	sizer         *risk.Sizer
	equity        EquityProvider
	provider      MarketDataProvider
}

func NewPositionSizerGate(stopLossCfg config.StopLossConfig, takeProfitCfg config.TakeProfitConfig, sizer *risk.Sizer, equity EquityProvider, provider MarketDataProvider) *PositionSizerGate {
	return &PositionSizerGate{
		stopLossCfg: stopLossCfg, takeProfitCfg: takeProfitCfg,
		sizer: sizer, equity: equity, provider: provider,
	}
}

func (g *PositionSizerGate) Name() string { return "position_sizer" }

func (g *PositionSizerGate) Evaluate(ctx context.Context, symbol string) Result {
	atrPeriod := g.stopLossCfg.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	candles, err := g.provider.GetCandles(ctx, symbol, atrPeriod+5)
	if err != nil || len(candles) == 0 {
		return Reject("failed to load candles for position sizing", nil)
	}
	ob, err := g.provider.GetOrderbook(ctx, symbol)
	if err != nil {
		return Reject("failed to load orderbook for position sizing: "+err.Error(), nil)
	}

	atrValues := indicators.ATR(candles, atrPeriod)
	atrValue := atrValues[len(atrValues)-1]

	equity, err := g.equity.GetEquityUSD(ctx)
	if err != nil {
		return Reject("failed to load equity: "+err.Error(), nil)
	}

	entryPrice := ob.BestAsk()
	stopLoss := ComputeStopLoss(g.stopLossCfg, entryPrice, atrValue)
	takeProfit := ComputeTakeProfit(g.takeProfitCfg, entryPrice, stopLoss)
	stopDistance := entryPrice.Sub(stopLoss)

	quantity := g.sizer.Calculate(risk.SizingInputs{
		EquityUSD:        equity,
		EntryPrice:       entryPrice,
		ATRValue:         decimal.NewFromFloat(atrValue),
		StopLossDistance: stopDistance,
	})

	if !quantity.IsPositive() {
		return Reject("position sizer produced a non-positive quantity", map[string]any{
			"stop_distance": stopDistance,
		})
	}

	return Result{
		Allowed: true,
		Payload: map[string]any{
			"entry_price": entryPrice,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
			"quantity":    quantity,
			"orderbook":   ob,
		},
	}
}
