package gates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/risk"
)

// fakeMarket serves a fixed book and a flat candle history whose range is
// controlled by the test (rangeSize 0 makes ATR collapse to zero).
type fakeMarket struct {
	bid, ask  decimal.Decimal
	depth     decimal.Decimal
	rangeSize decimal.Decimal
}

func (f fakeMarket) GetCandles(ctx context.Context, symbol string, limit int) ([]market.Candle, error) {
	out := make([]market.Candle, 0, limit)
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mid := f.bid.Add(f.ask).Div(decimal.NewFromInt(2))
	for i := 0; i < limit; i++ {
		c, err := market.NewCandle(ts.Add(time.Duration(i)*time.Minute),
			mid, mid.Add(f.rangeSize), mid.Sub(f.rangeSize), mid, decimal.NewFromInt(5))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (f fakeMarket) GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error) {
	return market.NewOrderbook(
		[]market.Level{{Price: f.bid, Quantity: f.depth}},
		[]market.Level{{Price: f.ask, Quantity: f.depth}},
	)
}

type fakeEquity struct{ equity decimal.Decimal }

func (f fakeEquity) GetEquityUSD(ctx context.Context) (decimal.Decimal, error) {
	return f.equity, nil
}

func fixedSizerGate(provider MarketDataProvider) *PositionSizerGate {
	slCfg := config.StopLossConfig{Method: config.StopLossFixedPct, FixedPct: decimal.NewFromInt(2), ATRPeriod: 14}
	tpCfg := config.TakeProfitConfig{Method: config.TakeProfitFixedPct, FixedPct: decimal.NewFromInt(4)}
	sizer := risk.NewSizer(config.PositionSizingConfig{
		Method:         config.SizingFixed,
		FixedQuantity:  decimal.NewFromInt(1),
		MaxPositionPct: decimal.NewFromInt(100),
	})
	return NewPositionSizerGate(slCfg, tpCfg, sizer, fakeEquity{equity: decimal.NewFromInt(10000)}, provider)
}

func TestPositionSizerGateProducesPlanLevels(t *testing.T) {
	provider := fakeMarket{
		bid: decimal.NewFromInt(99), ask: decimal.NewFromInt(100),
		depth: decimal.NewFromInt(50), rangeSize: decimal.NewFromInt(1),
	}
	g := fixedSizerGate(provider)

	result := g.Evaluate(context.Background(), "BTC/USDT")
	require.True(t, result.Allowed, "reason: %s", result.Reason)

	entry := result.Payload["entry_price"].(decimal.Decimal)
	sl := result.Payload["stop_loss"].(decimal.Decimal)
	tp := result.Payload["take_profit"].(decimal.Decimal)
	qty := result.Payload["quantity"].(decimal.Decimal)

	assert.True(t, entry.Equal(decimal.NewFromInt(100)), "entry is the best ask")
	assert.True(t, sl.Equal(decimal.NewFromInt(98)), "2%% below entry, got %s", sl)
	assert.True(t, tp.Equal(decimal.NewFromInt(104)), "4%% above entry, got %s", tp)
	assert.True(t, qty.Equal(decimal.NewFromInt(1)))
}

func TestPositionSizerGateRejectsZeroStopDistance(t *testing.T) {
	// risk_pct sizing with a 0% fixed stop and zero-range candles: both the
	// stop distance and the ATR fallback collapse, so quantity must be zero
	// and the gate must reject.
	provider := fakeMarket{
		bid: decimal.NewFromInt(99), ask: decimal.NewFromInt(100),
		depth: decimal.NewFromInt(50), rangeSize: decimal.Zero,
	}
	slCfg := config.StopLossConfig{Method: config.StopLossFixedPct, FixedPct: decimal.Zero, ATRPeriod: 14}
	tpCfg := config.TakeProfitConfig{Method: config.TakeProfitFixedPct, FixedPct: decimal.NewFromInt(4)}
	sizer := risk.NewSizer(config.PositionSizingConfig{
		Method:         config.SizingRiskPct,
		RiskPct:        decimal.NewFromInt(2),
		MaxPositionPct: decimal.NewFromInt(100),
	})
	g := NewPositionSizerGate(slCfg, tpCfg, sizer, fakeEquity{equity: decimal.NewFromInt(10000)}, provider)

	result := g.Evaluate(context.Background(), "BTC/USDT")
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "non-positive quantity")
}

func TestProfitabilityGateInclusiveBoundary(t *testing.T) {
	// entry 100 (best ask), TP 104, qty 1, zero fees, one deep ask level so
	// slippage is zero. The only cost is crossing from mid 99.5 to ask 100:
	// spread cost 0.5. net = 4 - 0.5 = 3.5.
	provider := fakeMarket{
		bid: decimal.NewFromInt(99), ask: decimal.NewFromInt(100),
		depth: decimal.NewFromInt(50), rangeSize: decimal.NewFromInt(1),
	}
	sizerGate := fixedSizerGate(provider)

	atBoundary := NewProfitabilityGate(sizerGate, config.ExecutionConfig{
		MinProfitUSD: decimal.NewFromFloat(3.5),
		TakerFeeBps:  decimal.Zero,
	})
	result := atBoundary.Evaluate(context.Background(), "BTC/USDT")
	assert.True(t, result.Allowed, "net expected exactly at min_profit_usd must pass: %s", result.Reason)

	aboveBoundary := NewProfitabilityGate(sizerGate, config.ExecutionConfig{
		MinProfitUSD: decimal.NewFromFloat(3.51),
		TakerFeeBps:  decimal.Zero,
	})
	result = aboveBoundary.Evaluate(context.Background(), "BTC/USDT")
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "below minimum")
}

func TestProfitabilityGateSubtractsFees(t *testing.T) {
	provider := fakeMarket{
		bid: decimal.NewFromInt(99), ask: decimal.NewFromInt(100),
		depth: decimal.NewFromInt(50), rangeSize: decimal.NewFromInt(1),
	}
	sizerGate := fixedSizerGate(provider)

	// 100 bps on both legs: entry fee 1.00 + exit fee 1.04 = 2.04; the 3.5
	// fee-free margin shrinks to 1.46, so a 2 USD minimum now rejects.
	g := NewProfitabilityGate(sizerGate, config.ExecutionConfig{
		MinProfitUSD: decimal.NewFromInt(2),
		TakerFeeBps:  decimal.NewFromInt(100),
	})
	result := g.Evaluate(context.Background(), "BTC/USDT")
	assert.False(t, result.Allowed)
}
