package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// fakeAdapter counts PlaceMarketOrder calls and fills at a fixed price.
type fakeAdapter struct {
	fillPrice  decimal.Decimal
	commission decimal.Decimal
	placeCalls int
	failNext   bool
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.fillPrice, nil
}

func (f *fakeAdapter) GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error) {
	return market.NewOrderbook(
		[]market.Level{{Price: f.fillPrice.Sub(decimal.NewFromInt(1)), Quantity: decimal.NewFromInt(10)}},
		[]market.Level{{Price: f.fillPrice, Quantity: decimal.NewFromInt(10)}},
	)
}

func (f *fakeAdapter) PlaceMarketOrder(ctx context.Context, symbol string, side market.Side, quantity decimal.Decimal) (PlacedOrder, error) {
	f.placeCalls++
	if f.failNext {
		f.failNext = false
		return PlacedOrder{}, errors.New("venue rejected order")
	}
	return PlacedOrder{
		ID:            "ex-1",
		Symbol:        symbol,
		Side:          side,
		AvgPrice:      f.fillPrice,
		FilledQty:     quantity,
		CommissionUSD: f.commission,
		FilledAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

// fakeTradeStore is an in-memory TradeFinder fed by the test.
type fakeTradeStore struct {
	trades map[string]Trade
}

func (s *fakeTradeStore) FindTrade(ctx context.Context, tradeID string) (Trade, bool, error) {
	t, ok := s.trades[tradeID]
	return t, ok, nil
}

// eventRecorder captures AppendEvent calls for assertion.
type eventRecorder struct {
	types []string
}

func (r *eventRecorder) AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error {
	r.types = append(r.types, eventType)
	return nil
}

func TestLiveEntryPlacesOneOrder(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{fillPrice: decimal.NewFromInt(50010)}
	store := &fakeTradeStore{trades: map[string]Trade{}}
	events := &eventRecorder{}
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewLiveExecutor(adapter, clk, store, events)

	result, err := exec.ExecuteEntry(ctx, btcPlan())
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.placeCalls)
	assert.Equal(t, ModeLive, result.Trade.Mode)
	assert.True(t, result.Trade.EntryPrice.Equal(decimal.NewFromInt(50010)),
		"live trade must record the venue's average fill, not the plan price")
	assert.Equal(t, "ex-1", result.Orders[0].ExchangeOrderID)
}

func TestLiveEntryIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{fillPrice: decimal.NewFromInt(50010)}
	store := &fakeTradeStore{trades: map[string]Trade{}}
	events := &eventRecorder{}
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewLiveExecutor(adapter, clk, store, events)

	plan := btcPlan()
	first, err := exec.ExecuteEntry(ctx, plan)
	require.NoError(t, err)
	store.trades[plan.TradeID] = first.Trade

	second, err := exec.ExecuteEntry(ctx, plan)
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.placeCalls, "replay must not contact the exchange again")
	assert.Equal(t, first.Trade.TradeID, second.Trade.TradeID)
	assert.True(t, first.Trade.EntryPrice.Equal(second.Trade.EntryPrice))
	assert.Contains(t, events.types, "execution.idempotency_hit")
}

func TestLiveEntryFailureEmitsExecutionError(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{fillPrice: decimal.NewFromInt(50010), failNext: true}
	events := &eventRecorder{}
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewLiveExecutor(adapter, clk, &fakeTradeStore{trades: map[string]Trade{}}, events)

	_, err := exec.ExecuteEntry(ctx, btcPlan())
	assert.Error(t, err)
	assert.Contains(t, events.types, "error.execution")
}

func TestLiveExitFailureLeavesPositionOpen(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{fillPrice: decimal.NewFromInt(50010)}
	events := &eventRecorder{}
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewLiveExecutor(adapter, clk, &fakeTradeStore{trades: map[string]Trade{}}, events)

	entry, err := exec.ExecuteEntry(ctx, btcPlan())
	require.NoError(t, err)

	adapter.failNext = true
	result, err := exec.CheckExit(ctx, entry.Trade, decimal.NewFromInt(48000))
	assert.Error(t, err)
	assert.Nil(t, result, "a failed exit order returns no result so the loop retries next tick")
	assert.Contains(t, events.types, "error.execution")
}

func TestLiveExitPnLExcludesCommission(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{fillPrice: decimal.NewFromInt(50010), commission: decimal.NewFromFloat(2.5)}
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	exec := NewLiveExecutor(adapter, clk, &fakeTradeStore{trades: map[string]Trade{}}, &eventRecorder{})

	entry, err := exec.ExecuteEntry(ctx, btcPlan())
	require.NoError(t, err)

	adapter.fillPrice = decimal.NewFromInt(52000)
	result, err := exec.CheckExit(ctx, entry.Trade, decimal.NewFromInt(52000))
	require.NoError(t, err)
	require.NotNil(t, result)

	// (52000 - 50010) * 0.1 = 199; commission stays out of realized PnL.
	assert.True(t, result.Trade.RealizedPnLUSD.Equal(decimal.NewFromInt(199)),
		"realized pnl was %s", result.Trade.RealizedPnLUSD)
	// Both legs' commissions accumulate in FeesUSD.
	assert.True(t, result.Trade.FeesUSD.Equal(decimal.NewFromInt(5)),
		"fees were %s", result.Trade.FeesUSD)
}

func TestReconcileEmitsSymbolEvents(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{fillPrice: decimal.NewFromInt(50010)}
	events := &eventRecorder{}

	open := []Trade{
		{TradeID: "t1", Symbol: "BTC/USDT", Status: TradeStatusOpen},
		{TradeID: "t2", Symbol: "ETH/USDT", Status: TradeStatusOpen},
		{TradeID: "t3", Symbol: "BTC/USDT", Status: TradeStatusOpen},
	}
	require.NoError(t, Reconcile(ctx, adapter, open, events))

	assert.Equal(t, "reconcile.started", events.types[0])
	assert.Equal(t, "reconcile.completed", events.types[len(events.types)-1])
	perSymbol := 0
	for _, typ := range events.types {
		if typ == "reconcile.symbol" {
			perSymbol++
		}
	}
	assert.Equal(t, 2, perSymbol, "one reconcile.symbol per distinct symbol")
}
