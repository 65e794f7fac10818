package execution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("order-%d", n)
	}
}

func btcPlan() market.TradePlan {
	return market.TradePlan{
		TradeID:    "trade-1",
		Symbol:     "BTC/USDT",
		Side:       market.SideBuy,
		EntryPrice: decimal.NewFromInt(50000),
		Quantity:   decimal.NewFromFloat(0.1),
		StopLoss:   decimal.NewFromInt(49000),
		TakeProfit: decimal.NewFromInt(52000),
	}
}

func TestDryRunEntryFillsAtPlanPrice(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewDryRunExecutor(clk, sequentialIDs())

	result, err := exec.ExecuteEntry(context.Background(), btcPlan())
	require.NoError(t, err)

	assert.Equal(t, TradeStatusOpen, result.Trade.Status)
	assert.Equal(t, ModeDryRun, result.Trade.Mode)
	assert.True(t, result.Trade.EntryPrice.Equal(decimal.NewFromInt(50000)))

	require.Len(t, result.Orders, 3)
	assert.Equal(t, OrderTypeMarket, result.Orders[0].OrderType)
	assert.Equal(t, OrderStatusFilled, result.Orders[0].Status)
	assert.Equal(t, OrderTypeStopLoss, result.Orders[1].OrderType)
	assert.Equal(t, OrderStatusPending, result.Orders[1].Status)
	assert.Equal(t, OrderTypeTakeProfit, result.Orders[2].OrderType)
	assert.Equal(t, OrderStatusPending, result.Orders[2].Status)
	assert.Equal(t, "QS-trade-1-STOP_LOSS", result.Orders[1].IdempotencyKey)
}

func TestDryRunEntryRejectsInvalidPlan(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewDryRunExecutor(clk, sequentialIDs())

	plan := btcPlan()
	plan.StopLoss = decimal.NewFromInt(51000) // stop above entry
	_, err := exec.ExecuteEntry(context.Background(), plan)
	assert.Error(t, err)
}

func TestDryRunTakeProfitHit(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewDryRunExecutor(clk, sequentialIDs())

	entry, err := exec.ExecuteEntry(ctx, btcPlan())
	require.NoError(t, err)

	clk.Advance(time.Minute)
	result, err := exec.CheckExit(ctx, entry.Trade, decimal.NewFromInt(52000))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "take_profit", result.Reason)
	assert.True(t, result.Trade.ExitPrice.Equal(decimal.NewFromInt(52000)))
	// (52000 - 50000) * 0.1 = 200
	assert.True(t, result.Trade.RealizedPnLUSD.Equal(decimal.NewFromInt(200)),
		"realized pnl was %s", result.Trade.RealizedPnLUSD)
	assert.Equal(t, TradeStatusClosed, result.Trade.Status)

	byType := map[OrderType]Order{}
	for _, o := range result.Orders {
		byType[o.OrderType] = o
	}
	assert.Equal(t, OrderStatusCancelled, byType[OrderTypeStopLoss].Status)
	assert.Equal(t, OrderStatusFilled, byType[OrderTypeTakeProfit].Status)
}

func TestDryRunStopLossHit(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewDryRunExecutor(clk, sequentialIDs())

	entry, err := exec.ExecuteEntry(ctx, btcPlan())
	require.NoError(t, err)

	result, err := exec.CheckExit(ctx, entry.Trade, decimal.NewFromInt(48500))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "stop_loss", result.Reason)
	assert.True(t, result.Trade.RealizedPnLUSD.IsNegative())
}

func TestDryRunNoExitBetweenLevels(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewDryRunExecutor(clk, sequentialIDs())

	entry, err := exec.ExecuteEntry(ctx, btcPlan())
	require.NoError(t, err)

	result, err := exec.CheckExit(ctx, entry.Trade, decimal.NewFromInt(50500))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestClosedTradePnLIdentity(t *testing.T) {
	// For a closed BUY trade, pnl = (exit - entry) * qty with no fee term:
	// fees live only in FeesUSD, never folded into realized PnL.
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewDryRunExecutor(clk, sequentialIDs())

	plan := btcPlan()
	plan.Quantity = decimal.NewFromFloat(0.0373)
	plan.EstFeeUSD = decimal.NewFromFloat(1.87)
	entry, err := exec.ExecuteEntry(ctx, plan)
	require.NoError(t, err)

	exitPrice := decimal.NewFromFloat(52310.55)
	result, err := exec.CheckExit(ctx, entry.Trade, exitPrice)
	require.NoError(t, err)
	require.NotNil(t, result)

	want := exitPrice.Sub(plan.EntryPrice).Mul(plan.Quantity)
	assert.True(t, result.Trade.RealizedPnLUSD.Sub(want).Abs().LessThan(decimal.NewFromFloat(1e-6)))
	assert.True(t, result.Trade.FeesUSD.Equal(plan.EstFeeUSD))
}
