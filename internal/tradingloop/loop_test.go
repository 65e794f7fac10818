package tradingloop

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/breakers"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/control"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/execution"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/gates"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/risk"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/statemachine"
)

// fakeProvider serves a flat synthetic book and candle history.
type fakeProvider struct {
	price decimal.Decimal
}

func (p *fakeProvider) GetCandles(ctx context.Context, symbol string, limit int) ([]market.Candle, error) {
	candles := make([]market.Candle, 0, limit)
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < limit; i++ {
		c, err := market.NewCandle(ts.Add(time.Duration(i)*time.Minute),
			p.price, p.price.Add(decimal.NewFromInt(1)), p.price.Sub(decimal.NewFromInt(1)), p.price, decimal.NewFromInt(10))
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (p *fakeProvider) GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error) {
	return market.NewOrderbook(
		[]market.Level{{Price: p.price.Sub(decimal.NewFromInt(1)), Quantity: decimal.NewFromInt(100)}},
		[]market.Level{{Price: p.price.Add(decimal.NewFromInt(1)), Quantity: decimal.NewFromInt(100)}},
	)
}

// planGate allows every entry and supplies a full trade-plan payload.
type planGate struct{ entry decimal.Decimal }

func (g planGate) Name() string { return "plan" }

func (g planGate) Evaluate(ctx context.Context, symbol string) gates.Result {
	return gates.Result{Allowed: true, Payload: map[string]any{
		"entry_price": g.entry,
		"stop_loss":   g.entry.Mul(decimal.NewFromFloat(0.98)),
		"take_profit": g.entry.Mul(decimal.NewFromFloat(1.04)),
		"quantity":    decimal.NewFromFloat(0.1),
	}}
}

// rejectGate always rejects.
type rejectGate struct{}

func (rejectGate) Name() string { return "reject" }
func (rejectGate) Evaluate(ctx context.Context, symbol string) gates.Result {
	return gates.Reject("always rejected", nil)
}

type recordedEvent struct {
	Type    string
	Payload map[string]any
}

type eventRecorder struct{ events []recordedEvent }

func (r *eventRecorder) AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error {
	r.events = append(r.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (r *eventRecorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func disabledSafetyConfig() config.BotConfig {
	cfg := config.DefaultConfig()
	cfg.Symbols.Enabled = []string{"BTC/USDT"}
	cfg.Breakers.Volatility.Enabled = false
	cfg.Breakers.SpreadSlippage.Enabled = false
	cfg.Breakers.ConsecutiveLosses.Enabled = false
	cfg.Breakers.News.Enabled = false
	cfg.Daily.Enabled = false
	cfg.TrailingStop.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, entryGates []gates.Gate, state control.BotState) (*Engine, *control.InMemoryControlPlane, *eventRecorder, *clock.Frozen) {
	t.Helper()
	clk := clock.NewFrozen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := disabledSafetyConfig()

	ctrl := control.NewInMemoryControlPlane(clk)
	require.NoError(t, ctrl.SetBotState(context.Background(), state))

	breakerMgr := breakers.NewManager(cfg.Breakers, nil, nil, clk)
	dailyLock := risk.NewDailyLock(cfg.Daily, nil, clk)
	trailing := risk.NewTrailingStopManager(cfg.TrailingStop)
	provider := &fakeProvider{price: decimal.NewFromInt(50000)}
	ids := 0
	executor := execution.NewDryRunExecutor(clk, func() string { ids++; return fmt.Sprintf("o-%d", ids) })
	events := &eventRecorder{}

	engine := NewEngine(cfg, ctrl, breakerMgr, dailyLock, trailing, entryGates, executor, nil, provider, events, clk)
	return engine, ctrl, events, clk
}

func TestEntryPipelineOpensPosition(t *testing.T) {
	ctx := context.Background()
	engine, _, events, _ := newTestEngine(t, []gates.Gate{planGate{entry: decimal.NewFromInt(50000)}}, control.BotStateRunning)

	engine.Tick(ctx, "BTC/USDT") // IDLE -> EVAL
	assert.Equal(t, statemachine.StateEval, engine.machineFor("BTC/USDT").State())

	engine.Tick(ctx, "BTC/USDT") // EVAL -> ENTRY_PENDING -> IN_POSITION
	assert.Equal(t, statemachine.StateInPosition, engine.machineFor("BTC/USDT").State())
	assert.Contains(t, events.types(), "trade.entered")
}

func TestGateRejectionReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	engine, _, events, _ := newTestEngine(t, []gates.Gate{rejectGate{}}, control.BotStateRunning)

	engine.Tick(ctx, "BTC/USDT")
	engine.Tick(ctx, "BTC/USDT")
	assert.Equal(t, statemachine.StateIdle, engine.machineFor("BTC/USDT").State())
	assert.Contains(t, events.types(), "gate.rejected")
}

func TestStoppedBlocksEverything(t *testing.T) {
	ctx := context.Background()
	engine, _, events, _ := newTestEngine(t, []gates.Gate{planGate{entry: decimal.NewFromInt(50000)}}, control.BotStateStopped)

	engine.Tick(ctx, "BTC/USDT")
	engine.Tick(ctx, "BTC/USDT")
	assert.Equal(t, statemachine.StateIdle, engine.machineFor("BTC/USDT").State())
	assert.Empty(t, events.types())
}

func TestPausedEntriesStillRunsExits(t *testing.T) {
	ctx := context.Background()
	engine, ctrl, events, _ := newTestEngine(t, []gates.Gate{planGate{entry: decimal.NewFromInt(50000)}}, control.BotStateRunning)

	engine.Tick(ctx, "BTC/USDT")
	engine.Tick(ctx, "BTC/USDT")
	require.Equal(t, statemachine.StateInPosition, engine.machineFor("BTC/USDT").State())

	require.NoError(t, ctrl.SetBotState(ctx, control.BotStatePausedEntries))

	// Crash the mark below the stop; the exit must still execute while
	// entries are paused.
	engine.market.(*fakeProvider).price = decimal.NewFromInt(45000)
	engine.Tick(ctx, "BTC/USDT")

	assert.Equal(t, statemachine.StateIdle, engine.machineFor("BTC/USDT").State())
	assert.Contains(t, events.types(), "trade.exited")
}

func TestPausedEntriesBlocksNewEntries(t *testing.T) {
	ctx := context.Background()
	engine, _, events, _ := newTestEngine(t, []gates.Gate{planGate{entry: decimal.NewFromInt(50000)}}, control.BotStatePausedEntries)

	engine.Tick(ctx, "BTC/USDT")
	engine.Tick(ctx, "BTC/USDT")
	assert.Equal(t, statemachine.StateIdle, engine.machineFor("BTC/USDT").State())
	assert.NotContains(t, events.types(), "trade.entered")
}

func TestTakeProfitExitRecordsPnL(t *testing.T) {
	ctx := context.Background()
	engine, _, events, _ := newTestEngine(t, []gates.Gate{planGate{entry: decimal.NewFromInt(50000)}}, control.BotStateRunning)

	engine.Tick(ctx, "BTC/USDT")
	engine.Tick(ctx, "BTC/USDT")
	require.Equal(t, statemachine.StateInPosition, engine.machineFor("BTC/USDT").State())

	// 50000 * 1.04 = 52000 take-profit; push the mid above it.
	engine.market.(*fakeProvider).price = decimal.NewFromInt(52500)
	engine.Tick(ctx, "BTC/USDT")

	require.Equal(t, statemachine.StateIdle, engine.machineFor("BTC/USDT").State())
	var exited *recordedEvent
	for i := range events.events {
		if events.events[i].Type == "trade.exited" {
			exited = &events.events[i]
		}
	}
	require.NotNil(t, exited)
	assert.Equal(t, "take_profit", exited.Payload["exit_reason"])
}

func TestHeartbeatStampedAfterTickAll(t *testing.T) {
	ctx := context.Background()
	engine, ctrl, _, clk := newTestEngine(t, []gates.Gate{rejectGate{}}, control.BotStateRunning)

	engine.TickAll(ctx)
	assert.Equal(t, clk.Now(), ctrl.LastHeartbeat())
}
