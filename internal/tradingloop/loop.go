// Package tradingloop is the composition root's per-symbol tick: state
// machine transitions driving the entry-gate pipeline and exit checks.
// Grounded on chidi150c-coinbase/trader.go's concurrency design,
// generalized from the teacher's single mutex-guarded Trader: each symbol's
// tick holds that symbol's own lock for its whole duration, I/O included,
// and the shared maps' mutex is held only for in-memory reads and updates,
// so ticks across symbols never contend.
package tradingloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/google/uuid"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/breakers"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/control"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/execution"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/gates"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/indicators"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/metrics"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/persistence"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/risk"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/statemachine"
)

// EventAppender mirrors the local interfaces in breakers/risk so the loop
// can log its own transition/rejection events through the same repository.
type EventAppender interface {
	AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error
}

// Engine owns one Machine and one open-trade slot per configured symbol and
// drives them through the entry/exit pipeline on every Tick.
type Engine struct {
	cfg       config.BotConfig
	control   control.ControlPlane
	breakerMgr *breakers.Manager
	dailyLock *risk.DailyLock
	trailing  *risk.TrailingStopManager
	entryGates []gates.Gate
	executor  execution.Executor
	repo      *persistence.Repository
	market    gates.MarketDataProvider
	events    EventAppender
	clock     clock.Clock

	mu            sync.Mutex
	machines      map[string]*statemachine.Machine
	openTrades    map[string]execution.Trade
	symbolLocks   map[string]*sync.Mutex
}

func NewEngine(
	cfg config.BotConfig,
	ctrl control.ControlPlane,
	breakerMgr *breakers.Manager,
	dailyLock *risk.DailyLock,
	trailing *risk.TrailingStopManager,
	entryGates []gates.Gate,
	executor execution.Executor,
	repo *persistence.Repository,
	market gates.MarketDataProvider,
	events EventAppender,
	clk clock.Clock,
) *Engine {
	e := &Engine{
		cfg: cfg, control: ctrl, breakerMgr: breakerMgr, dailyLock: dailyLock,
		trailing: trailing, entryGates: entryGates, executor: executor,
		repo: repo, market: market, events: events, clock: clk,
		machines:    make(map[string]*statemachine.Machine),
		openTrades:  make(map[string]execution.Trade),
		symbolLocks: make(map[string]*sync.Mutex),
	}
	for _, sym := range cfg.Symbols.Enabled {
		e.machines[sym] = statemachine.New(sym)
		e.symbolLocks[sym] = &sync.Mutex{}
	}
	return e
}

// Restore reconstructs every symbol's state machine from the repository's
// open trades (spec.md §4.2), moving a symbol with an open position
// straight to IN_POSITION and seeding the trailing-stop manager so the next
// tick can evaluate its exit immediately instead of waiting for a fresh
// entry. Call once at startup, before the first Tick.
func (e *Engine) Restore(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	open, err := e.repo.GetOpenTrades(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, trade := range open {
		if _, enabled := e.machines[trade.Symbol]; !enabled {
			continue
		}
		e.openTrades[trade.Symbol] = trade
		e.machines[trade.Symbol].Restore(statemachine.StateInPosition)
		e.trailing.InitPosition(trade.TradeID, trade.EntryPrice, trade.StopLoss)
	}
	return nil
}

// Run ticks every configured symbol once per interval until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.TickAll(ctx)
		}
	}
}

// TickAll processes every enabled symbol once, then stamps the control
// plane heartbeat and records an equity snapshot (spec.md §4.3). Symbols
// run concurrently but each symbol's work stays serial under its own lock,
// preserving per-symbol event order.
func (e *Engine) TickAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sym := range e.cfg.Symbols.Enabled {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Tick(ctx, sym)
		}()
	}
	wg.Wait()

	_ = e.control.Heartbeat(ctx, e.clock.Now())
	e.recordEquitySnapshot(ctx)
}

// Tick advances one symbol's state machine exactly one step. Locked per
// symbol; gate evaluation and order placement happen outside any lock the
// other symbols' ticks would contend on. A control-plane read failure
// degrades to STOPPED, which suspends both pipelines. Exit management runs
// in every state but STOPPED; the entry pipeline only while RUNNING.
func (e *Engine) Tick(ctx context.Context, symbol string) {
	lock := e.symbolLockFor(symbol)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.control.GetBotState(ctx)
	if err != nil {
		state = control.BotStateStopped
	}

	sm := e.machineFor(symbol)
	if sm.State() == statemachine.StateInPosition {
		if state.ExitsAllowed() {
			e.tickInPosition(ctx, symbol, sm)
		}
		return
	}

	if !state.EntriesAllowed() {
		return
	}
	switch sm.State() {
	case statemachine.StateIdle:
		e.tickIdle(ctx, symbol, sm)
	case statemachine.StateEval:
		e.tickEval(ctx, symbol, sm)
	}
}

func (e *Engine) tickIdle(ctx context.Context, symbol string, sm *statemachine.Machine) {
	_ = sm.Transition(statemachine.StateEval)
}

func (e *Engine) tickEval(ctx context.Context, symbol string, sm *statemachine.Machine) {
	e.runBreakerChecks(ctx, symbol)

	if allowed, reason := e.dailyLockAndBreakersAllow(ctx); !allowed {
		e.emit(ctx, "gate.rejected", symbol, map[string]any{"gate": "daily_lock_or_breaker", "reason": reason})
		_ = sm.Transition(statemachine.StateIdle)
		return
	}

	payload, allowed := e.runEntryGates(ctx, symbol)
	if !allowed {
		_ = sm.Transition(statemachine.StateIdle)
		return
	}

	plan, ok := buildTradePlan(symbol, payload)
	if !ok {
		_ = sm.Transition(statemachine.StateIdle)
		return
	}

	if err := sm.Transition(statemachine.StateEntryPending); err != nil {
		return
	}

	result, err := e.executor.ExecuteEntry(ctx, plan)
	if err != nil {
		e.emit(ctx, "entry.failed", symbol, map[string]any{"error": err.Error()})
		_ = sm.Transition(statemachine.StateIdle)
		return
	}

	if e.repo != nil {
		if err := e.repo.SaveTrade(ctx, persistence.ExecutionTradeRecord(result.Trade)); err != nil {
			e.emit(ctx, "error.persistence", symbol, map[string]any{"error": err.Error()})
		}
		for _, o := range result.Orders {
			if err := e.repo.SaveOrder(ctx, persistence.ExecutionOrderRecord(o)); err != nil {
				e.emit(ctx, "error.persistence", symbol, map[string]any{"error": err.Error()})
			}
		}
	}

	e.mu.Lock()
	e.openTrades[symbol] = result.Trade
	e.mu.Unlock()

	e.trailing.InitPosition(result.Trade.TradeID, result.Trade.EntryPrice, result.Trade.StopLoss)
	metrics.OrdersTotal.WithLabelValues(string(e.cfg.Execution.Mode), string(result.Trade.Side)).Inc()
	e.emit(ctx, "trade.entered", symbol, map[string]any{
		"trade_id": result.Trade.TradeID, "entry_price": result.Trade.EntryPrice, "quantity": result.Trade.Quantity,
	})
	_ = sm.Transition(statemachine.StateInPosition)
}

func (e *Engine) tickInPosition(ctx context.Context, symbol string, sm *statemachine.Machine) {
	e.mu.Lock()
	trade, ok := e.openTrades[symbol]
	e.mu.Unlock()
	if !ok {
		_ = sm.Transition(statemachine.StateIdle)
		return
	}

	mark, err := e.markPrice(ctx, symbol)
	if err != nil {
		return
	}

	if e.cfg.TrailingStop.Enabled {
		atrValue := decimal.Zero
		if candles, err := e.market.GetCandles(ctx, symbol, e.cfg.TrailingStop.ATRPeriod+5); err == nil && len(candles) > 0 {
			series := indicators.ATR(candles, e.cfg.TrailingStop.ATRPeriod)
			atrValue = decimal.NewFromFloat(series[len(series)-1])
		}
		newStop := e.trailing.Update(trade.TradeID, mark, atrValue)
		trade.StopLoss = decimal.Max(trade.StopLoss, newStop)
	}

	result, err := e.executor.CheckExit(ctx, trade, mark)
	if err != nil {
		e.emit(ctx, "exit.failed", symbol, map[string]any{"error": err.Error()})
		return
	}
	if result == nil {
		e.mu.Lock()
		e.openTrades[symbol] = trade
		e.mu.Unlock()
		return
	}

	if err := sm.Transition(statemachine.StateExitPending); err != nil {
		return
	}

	if e.repo != nil {
		if err := e.repo.CloseTrade(ctx, persistence.ExecutionTradeRecord(result.Trade)); err != nil {
			if errors.Is(err, persistence.ErrTradeAlreadyClosed) {
				e.emit(ctx, "error.state_machine", symbol, map[string]any{
					"trade_id": result.Trade.TradeID, "error": "double close rejected",
				})
			} else {
				e.emit(ctx, "error.persistence", symbol, map[string]any{"error": err.Error()})
			}
		}
		for _, o := range result.Orders {
			if err := e.repo.SaveOrder(ctx, persistence.ExecutionOrderRecord(o)); err != nil {
				e.emit(ctx, "error.persistence", symbol, map[string]any{"error": err.Error()})
			}
		}
	}

	e.mu.Lock()
	delete(e.openTrades, symbol)
	e.mu.Unlock()
	e.trailing.RemovePosition(trade.TradeID)

	result.Trade.TradeID = trade.TradeID
	metrics.ExitReasonsTotal.WithLabelValues(result.Reason).Inc()
	tradeResult := "loss"
	if result.Trade.RealizedPnLUSD.IsPositive() {
		tradeResult = "win"
	} else if result.Trade.RealizedPnLUSD.IsZero() {
		tradeResult = "breakeven"
	}
	metrics.TradesTotal.WithLabelValues(tradeResult).Inc()
	e.emit(ctx, "trade.exited", symbol, map[string]any{
		"trade_id": result.Trade.TradeID, "exit_reason": result.Reason,
		"realized_pnl_usd": result.Trade.RealizedPnLUSD,
	})

	_ = sm.Transition(statemachine.StateIdle)
}

// runBreakerChecks feeds the symbol's latest market data into the breaker
// manager's volatility/spread/consecutive-losses triggers before the entry
// gate pipeline runs, so a freshly tripped breaker is reflected in the very
// same tick's active_breaker gate.
func (e *Engine) runBreakerChecks(ctx context.Context, symbol string) {
	candles, err := e.market.GetCandles(ctx, symbol, 30)
	if err != nil {
		return
	}
	ob, err := e.market.GetOrderbook(ctx, symbol)
	if err != nil {
		return
	}
	var history breakers.TradeHistoryProvider
	if e.repo != nil {
		history = e.repo
	}
	e.breakerMgr.RunChecks(ctx, candles, ob, history)
}

func (e *Engine) dailyLockAndBreakersAllow(ctx context.Context) (bool, string) {
	if allowed, reason := e.breakerMgr.EntriesAllowed(ctx); !allowed {
		return false, reason
	}
	todayPnL := decimal.Zero
	if e.repo != nil {
		if snap, err := e.repo.Snapshot(ctx, ""); err == nil {
			todayPnL = snap.DailyRealizedPnLUSD
		}
	}
	if allowed, reason := e.dailyLock.EntriesAllowed(ctx, todayPnL); !allowed {
		return false, reason
	}
	return true, ""
}

func (e *Engine) runEntryGates(ctx context.Context, symbol string) (map[string]any, bool) {
	merged := make(map[string]any)
	for _, g := range e.entryGates {
		result := g.Evaluate(ctx, symbol)
		for k, v := range result.Payload {
			merged[k] = v
		}
		if !result.Allowed {
			metrics.GateRejectionsTotal.WithLabelValues(g.Name()).Inc()
			e.emit(ctx, "gate.rejected", symbol, map[string]any{"gate": g.Name(), "reason": result.Reason})
			return merged, false
		}
	}
	return merged, true
}

// recordEquitySnapshot derives equity as starting cash plus lifetime
// realized PnL and appends one snapshot row per completed tick.
func (e *Engine) recordEquitySnapshot(ctx context.Context) {
	if e.repo == nil {
		return
	}
	realized, err := e.repo.TotalRealizedPnLUSD(ctx)
	if err != nil {
		e.emitGlobal(ctx, "error.persistence", map[string]any{"error": err.Error()})
		return
	}
	equity := e.cfg.Risk.StartingCashUSD.Add(realized)
	if err := e.repo.RecordEquitySnapshot(ctx, e.clock.Now(), equity); err != nil {
		e.emitGlobal(ctx, "error.persistence", map[string]any{"error": err.Error()})
	}
}

func (e *Engine) markPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ob, err := e.market.GetOrderbook(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ob.Mid(), nil
}

func (e *Engine) machineFor(symbol string) *statemachine.Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.machines[symbol]
	if !ok {
		m = statemachine.New(symbol)
		e.machines[symbol] = m
	}
	return m
}

func (e *Engine) symbolLockFor(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.symbolLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		e.symbolLocks[symbol] = l
	}
	return l
}

func (e *Engine) emit(ctx context.Context, eventType, symbol string, payload map[string]any) {
	if e.events == nil {
		return
	}
	sym := symbol
	_ = e.events.AppendEvent(ctx, eventType, "INFO", &sym, payload, true)
}

func (e *Engine) emitGlobal(ctx context.Context, eventType string, payload map[string]any) {
	if e.events == nil {
		return
	}
	_ = e.events.AppendEvent(ctx, eventType, "INFO", nil, payload, true)
}

func buildTradePlan(symbol string, payload map[string]any) (market.TradePlan, bool) {
	entryPrice, ok1 := payload["entry_price"].(decimal.Decimal)
	stopLoss, ok2 := payload["stop_loss"].(decimal.Decimal)
	takeProfit, ok3 := payload["take_profit"].(decimal.Decimal)
	quantity, ok4 := payload["quantity"].(decimal.Decimal)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return market.TradePlan{}, false
	}

	plan := market.TradePlan{
		TradeID:    uuid.NewString(),
		Symbol:     symbol,
		Side:       market.SideBuy,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	if fee, ok := payload["est_fee_usd"].(decimal.Decimal); ok {
		plan.EstFeeUSD = fee
	}
	if slip, ok := payload["est_slippage_usd"].(decimal.Decimal); ok {
		plan.EstSlippageUSD = slip
	}
	if spread, ok := payload["est_spread_cost_usd"].(decimal.Decimal); ok {
		plan.EstSpreadCostUSD = spread
	}
	if plan.Validate() != nil {
		return market.TradePlan{}, false
	}
	return plan, true
}
