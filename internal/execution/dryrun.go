package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// DryRunExecutor simulates fills at the planned entry price, without calling
// any exchange; the plan's fee estimate is recorded as the entry commission
// and the trade's FeesUSD, and does not move the fill price.
// Used when config.Execution.Mode == DRY_RUN. Grounded on
// original_source/execution/dry_run_executor.py.
type DryRunExecutor struct {
	clock clock.Clock
	idGen func() string
}

func NewDryRunExecutor(clk clock.Clock, idGen func() string) *DryRunExecutor {
	return &DryRunExecutor{clock: clk, idGen: idGen}
}

func (e *DryRunExecutor) ExecuteEntry(ctx context.Context, plan market.TradePlan) (EntryResult, error) {
	if err := plan.Validate(); err != nil {
		return EntryResult{}, err
	}

	now := e.clock.Now()
	order := PlacedOrder{
		ID:            e.idGen(),
		Symbol:        plan.Symbol,
		Side:          plan.Side,
		AvgPrice:      plan.EntryPrice,
		FilledQty:     plan.Quantity,
		CommissionUSD: plan.EstFeeUSD,
		FilledAt:      now,
	}
	entryOrder := Order{
		OrderID:         IdempotencyKey(plan.TradeID, OrderTypeMarket),
		TradeID:         plan.TradeID,
		Symbol:          plan.Symbol,
		Side:            plan.Side,
		OrderType:       OrderTypeMarket,
		Quantity:        plan.Quantity,
		Price:           plan.EntryPrice,
		FilledQty:       plan.Quantity,
		FilledPrice:     plan.EntryPrice,
		Status:          OrderStatusFilled,
		ExchangeOrderID: order.ID,
		IdempotencyKey:  IdempotencyKey(plan.TradeID, OrderTypeMarket),
		CreatedAt:       now,
		FilledAt:        now,
	}

	trade := Trade{
		TradeID:    plan.TradeID,
		Symbol:     plan.Symbol,
		Side:       plan.Side,
		Status:     TradeStatusOpen,
		Mode:       ModeDryRun,
		EntryPrice: plan.EntryPrice,
		Quantity:   plan.Quantity,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
		EntryTime:  order.FilledAt,
		FeesUSD:    plan.EstFeeUSD,
	}
	orders := append([]Order{entryOrder}, restingOrders(plan, now)...)
	return EntryResult{Trade: trade, Order: order, Orders: orders}, nil
}

// CheckExit reports whether the simulated position should close at
// markPrice: the trading loop is responsible for ratcheting trade.StopLoss
// via internal/risk.TrailingStopManager before calling this, so a trailing
// exit surfaces here as an ordinary stop-loss hit.
func (e *DryRunExecutor) CheckExit(ctx context.Context, trade Trade, markPrice decimal.Decimal) (*ExitResult, error) {
	reason, shouldExit := evaluateExit(trade, markPrice)
	if !shouldExit {
		return nil, nil
	}

	now := e.clock.Now()
	order := PlacedOrder{
		ID:        e.idGen(),
		Symbol:    trade.Symbol,
		Side:      market.Side("SELL"),
		AvgPrice:  markPrice,
		FilledQty: trade.Quantity,
		FilledAt:  now,
	}

	closed := trade
	closed.Status = TradeStatusClosed
	closed.ExitPrice = markPrice
	closed.ExitTime = now
	closed.ExitReason = reason
	closed.RealizedPnLUSD = markPrice.Sub(trade.EntryPrice).Mul(trade.Quantity)

	pending := restingOrdersFromTrade(trade, trade.EntryTime)
	orders := closeRestingOrders(pending, reason, markPrice, trade.Quantity, now)

	return &ExitResult{Trade: closed, Order: order, Orders: orders, Reason: reason}, nil
}

// evaluateExit checks stop-loss and take-profit in that order; the caller
// already folded any trailing-stop ratchet into trade.StopLoss.
func evaluateExit(trade Trade, markPrice decimal.Decimal) (reason string, shouldExit bool) {
	if markPrice.LessThanOrEqual(trade.StopLoss) {
		return "stop_loss", true
	}
	if markPrice.GreaterThanOrEqual(trade.TakeProfit) {
		return "take_profit", true
	}
	return "", false
}
