package execution

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// TradeFinder looks up a previously persisted trade by id, used to make
// ExecuteEntry idempotent: a retry after a crash or a duplicate tick must
// not place a second exchange order for the same trade_id (spec.md §4.7,
// §8 testable property 4).
type TradeFinder interface {
	FindTrade(ctx context.Context, tradeID string) (Trade, bool, error)
}

// EventAppender lets LiveExecutor log execution.idempotency_hit/error.execution
// events without execution importing the persistence package directly.
type EventAppender interface {
	AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error
}

// OpenOrdersLister is an optional ExchangeAdapter capability: venues that
// can report their own resting orders implement it so Reconcile can cross
// check exchange state against the repository on startup (spec.md §4.7).
type OpenOrdersLister interface {
	GetOpenOrders(ctx context.Context, symbol string) ([]PlacedOrder, error)
}

// LiveExecutor places real market orders through an ExchangeAdapter. Used
// when config.Execution.Mode == LIVE. Grounded on
// original_source/execution/live_executor.py and
// chidi150c-coinbase/broker_coinbase.go's PlaceMarketQuote call pattern.
type LiveExecutor struct {
	adapter ExchangeAdapter
	clock   clock.Clock
	trades  TradeFinder
	events  EventAppender
}

// NewLiveExecutor wires a venue adapter plus the optional idempotency
// collaborators (trades, events) the composition root supplies backed by
// internal/persistence.Repository. Both may be nil for tests that don't
// need idempotent-replay behavior.
func NewLiveExecutor(adapter ExchangeAdapter, clk clock.Clock, trades TradeFinder, events EventAppender) *LiveExecutor {
	return &LiveExecutor{adapter: adapter, clock: clk, trades: trades, events: events}
}

func (e *LiveExecutor) ExecuteEntry(ctx context.Context, plan market.TradePlan) (EntryResult, error) {
	if err := plan.Validate(); err != nil {
		return EntryResult{}, err
	}

	if e.trades != nil {
		if existing, ok, err := e.trades.FindTrade(ctx, plan.TradeID); err == nil && ok {
			e.emitIdempotencyHit(ctx, plan.Symbol, plan.TradeID, string(OrderTypeMarket))
			return EntryResult{
				Trade:  existing,
				Orders: restingOrdersFromTrade(existing, existing.EntryTime),
			}, nil
		}
	}

	now := e.clock.Now()
	order, err := e.adapter.PlaceMarketOrder(ctx, plan.Symbol, plan.Side, plan.Quantity)
	if err != nil {
		e.emitExecutionError(ctx, plan.Symbol, plan.TradeID, err)
		return EntryResult{}, fmt.Errorf("execution: entry order failed for %s: %w", plan.Symbol, err)
	}

	trade := Trade{
		TradeID:    plan.TradeID,
		Symbol:     plan.Symbol,
		Side:       plan.Side,
		Status:     TradeStatusOpen,
		Mode:       ModeLive,
		EntryPrice: order.AvgPrice,
		Quantity:   order.FilledQty,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
		EntryTime:  order.FilledAt,
		FeesUSD:    order.CommissionUSD,
	}

	entryOrder := Order{
		OrderID:         IdempotencyKey(plan.TradeID, OrderTypeMarket),
		TradeID:         plan.TradeID,
		Symbol:          plan.Symbol,
		Side:            plan.Side,
		OrderType:       OrderTypeMarket,
		Quantity:        plan.Quantity,
		Price:           order.AvgPrice,
		FilledQty:       order.FilledQty,
		FilledPrice:     order.AvgPrice,
		Status:          OrderStatusFilled,
		ExchangeOrderID: order.ID,
		IdempotencyKey:  IdempotencyKey(plan.TradeID, OrderTypeMarket),
		CreatedAt:       now,
		FilledAt:        order.FilledAt,
	}
	orders := append([]Order{entryOrder}, restingOrders(plan, now)...)

	return EntryResult{Trade: trade, Order: order, Orders: orders}, nil
}

// CheckExit evaluates the same stop-loss/take-profit condition DryRunExecutor
// does, but places a real market sell order when the condition fires.
func (e *LiveExecutor) CheckExit(ctx context.Context, trade Trade, markPrice decimal.Decimal) (*ExitResult, error) {
	reason, shouldExit := evaluateExit(trade, markPrice)
	if !shouldExit {
		return nil, nil
	}

	order, err := e.adapter.PlaceMarketOrder(ctx, trade.Symbol, market.Side("SELL"), trade.Quantity)
	if err != nil {
		e.emitExecutionError(ctx, trade.Symbol, trade.TradeID, err)
		return nil, fmt.Errorf("execution: exit order failed for %s: %w", trade.Symbol, err)
	}

	closed := trade
	closed.Status = TradeStatusClosed
	closed.ExitPrice = order.AvgPrice
	closed.ExitTime = order.FilledAt
	closed.ExitReason = reason
	closed.FeesUSD = trade.FeesUSD.Add(order.CommissionUSD)
	closed.RealizedPnLUSD = order.AvgPrice.Sub(trade.EntryPrice).Mul(trade.Quantity)

	pending := restingOrdersFromTrade(trade, trade.EntryTime)
	orders := closeRestingOrders(pending, reason, order.AvgPrice, order.FilledQty, order.FilledAt)

	return &ExitResult{Trade: closed, Order: order, Orders: orders, Reason: reason}, nil
}

func (e *LiveExecutor) emitIdempotencyHit(ctx context.Context, symbol, tradeID, leg string) {
	if e.events == nil {
		return
	}
	sym := symbol
	_ = e.events.AppendEvent(ctx, "execution.idempotency_hit", "INFO", &sym, map[string]any{
		"trade_id": tradeID, "order_leg": leg,
	}, false)
}

func (e *LiveExecutor) emitExecutionError(ctx context.Context, symbol, tradeID string, cause error) {
	if e.events == nil {
		return
	}
	sym := symbol
	_ = e.events.AppendEvent(ctx, "error.execution", "ERROR", &sym, map[string]any{
		"trade_id": tradeID, "error": cause.Error(),
	}, false)
}

// Reconcile runs once at startup (spec.md §4.7): for every still-open trade,
// fetch the venue's resting orders for its symbol and log one
// reconcile.symbol event per symbol visited, bracketed by
// reconcile.started/reconcile.completed. Adapters that don't implement
// OpenOrdersLister are skipped with a noted reason rather than failing
// startup.
func Reconcile(ctx context.Context, adapter ExchangeAdapter, openTrades []Trade, events EventAppender) error {
	if events != nil {
		_ = events.AppendEvent(ctx, "reconcile.started", "INFO", nil, map[string]any{"open_trades": len(openTrades)}, true)
	}

	lister, supported := adapter.(OpenOrdersLister)
	symbols := map[string]bool{}
	for _, t := range openTrades {
		symbols[t.Symbol] = true
	}

	for sym := range symbols {
		payload := map[string]any{"symbol": sym}
		if !supported {
			payload["note"] = "adapter does not support open-order listing"
		} else if orders, err := lister.GetOpenOrders(ctx, sym); err != nil {
			payload["error"] = err.Error()
		} else {
			payload["open_order_count"] = len(orders)
		}
		if events != nil {
			symCopy := sym
			_ = events.AppendEvent(ctx, "reconcile.symbol", "INFO", &symCopy, payload, true)
		}
	}

	if events != nil {
		_ = events.AppendEvent(ctx, "reconcile.completed", "INFO", nil, map[string]any{"symbols": len(symbols)}, true)
	}
	return nil
}
