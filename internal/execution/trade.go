package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// Mode records whether a trade was simulated or sent to a real exchange
// (spec.md §3's Trade.mode).
type Mode string

const (
	ModeDryRun Mode = "DRY_RUN"
	ModeLive   Mode = "LIVE"
)

// Trade is the persisted record of one entry-to-exit round trip. Grounded
// on original_source/models/trade.py.
type Trade struct {
	TradeID        string
	Symbol         string
	Side           market.Side
	Status         TradeStatus
	Mode           Mode
	EntryPrice     decimal.Decimal
	Quantity       decimal.Decimal
	StopLoss       decimal.Decimal
	TakeProfit     decimal.Decimal
	EntryTime      time.Time
	ExitPrice      decimal.Decimal
	ExitTime       time.Time
	ExitReason     string
	RealizedPnLUSD decimal.Decimal
	FeesUSD        decimal.Decimal
}

// OrderType mirrors spec.md §3's Order.order_type.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeStopLoss   OrderType = "STOP_LOSS"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

// OrderStatus mirrors spec.md §3's Order.status.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is one exchange order leg (entry, resting stop-loss, or resting
// take-profit) belonging to a Trade. IdempotencyKey is the
// "QS-<trade_id>-<ENTRY|STOP_LOSS|TAKE_PROFIT>" key spec.md §3 mandates for
// live mode; dry-run orders set it too, for symmetry, but it is never
// consulted there.
type Order struct {
	OrderID         string
	TradeID         string
	Symbol          string
	Side            market.Side
	OrderType       OrderType
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	FilledQty       decimal.Decimal
	FilledPrice     decimal.Decimal
	Status          OrderStatus
	ExchangeOrderID string
	IdempotencyKey  string
	CreatedAt       time.Time
	FilledAt        time.Time
}

// IdempotencyKey derives the client order id spec.md §4.7 requires:
// "QS-<trade_id>-<ENTRY|STOP_LOSS|TAKE_PROFIT>".
func IdempotencyKey(tradeID string, orderType OrderType) string {
	leg := string(orderType)
	if orderType == OrderTypeMarket {
		leg = "ENTRY"
	}
	return "QS-" + tradeID + "-" + leg
}

// EntryResult is the outcome of executing an approved TradePlan: the filled
// MARKET entry order plus the two resting STOP_LOSS/TAKE_PROFIT orders
// spec.md §4.7's dry-run executor places alongside it.
type EntryResult struct {
	Trade  Trade
	Order  PlacedOrder
	Orders []Order
}

// ExitResult is the outcome of closing an open Trade: the order that
// triggered the exit (now FILLED) and, when present, the sibling
// stop-loss/take-profit order (now CANCELLED).
type ExitResult struct {
	Trade  Trade
	Order  PlacedOrder
	Orders []Order
	Reason string
}

// Executor places entries and evaluates/executes exits. DryRunExecutor
// simulates fills against the plan itself; LiveExecutor places real market
// orders through an ExchangeAdapter.
type Executor interface {
	ExecuteEntry(ctx context.Context, plan market.TradePlan) (EntryResult, error)
	CheckExit(ctx context.Context, trade Trade, markPrice decimal.Decimal) (*ExitResult, error)
}

// restingOrders builds the two PENDING stop-loss/take-profit placeholders
// every entry creates alongside its filled MARKET order.
func restingOrders(plan market.TradePlan, now time.Time) []Order {
	return []Order{
		{
			OrderID:        IdempotencyKey(plan.TradeID, OrderTypeStopLoss),
			TradeID:        plan.TradeID,
			Symbol:         plan.Symbol,
			Side:           market.Side("SELL"),
			OrderType:      OrderTypeStopLoss,
			Quantity:       plan.Quantity,
			Price:          plan.StopLoss,
			Status:         OrderStatusPending,
			IdempotencyKey: IdempotencyKey(plan.TradeID, OrderTypeStopLoss),
			CreatedAt:      now,
		},
		{
			OrderID:        IdempotencyKey(plan.TradeID, OrderTypeTakeProfit),
			TradeID:        plan.TradeID,
			Symbol:         plan.Symbol,
			Side:           market.Side("SELL"),
			OrderType:      OrderTypeTakeProfit,
			Quantity:       plan.Quantity,
			Price:          plan.TakeProfit,
			Status:         OrderStatusPending,
			IdempotencyKey: IdempotencyKey(plan.TradeID, OrderTypeTakeProfit),
			CreatedAt:      now,
		},
	}
}

// restingOrdersFromTrade reconstructs the same two placeholders
// restingOrders built at entry time, from the Trade alone — OrderIDs are
// deterministic (IdempotencyKey-derived), so no separate ledger lookup is
// needed to close them at exit.
func restingOrdersFromTrade(trade Trade, createdAt time.Time) []Order {
	return []Order{
		{
			OrderID:        IdempotencyKey(trade.TradeID, OrderTypeStopLoss),
			TradeID:        trade.TradeID,
			Symbol:         trade.Symbol,
			Side:           market.Side("SELL"),
			OrderType:      OrderTypeStopLoss,
			Quantity:       trade.Quantity,
			Price:          trade.StopLoss,
			Status:         OrderStatusPending,
			IdempotencyKey: IdempotencyKey(trade.TradeID, OrderTypeStopLoss),
			CreatedAt:      createdAt,
		},
		{
			OrderID:        IdempotencyKey(trade.TradeID, OrderTypeTakeProfit),
			TradeID:        trade.TradeID,
			Symbol:         trade.Symbol,
			Side:           market.Side("SELL"),
			OrderType:      OrderTypeTakeProfit,
			Quantity:       trade.Quantity,
			Price:          trade.TakeProfit,
			Status:         OrderStatusPending,
			IdempotencyKey: IdempotencyKey(trade.TradeID, OrderTypeTakeProfit),
			CreatedAt:      createdAt,
		},
	}
}

// closeRestingOrders marks the order matching reason as FILLED (stamped
// with the actual fill) and its sibling as CANCELLED — spec.md §4.5's
// finalize step ("update matching SL/TP orders to FILLED or CANCELLED").
func closeRestingOrders(pending []Order, reason string, fillPrice, fillQty decimal.Decimal, filledAt time.Time) []Order {
	hitType := OrderTypeStopLoss
	if reason == "take_profit" {
		hitType = OrderTypeTakeProfit
	}
	out := make([]Order, 0, len(pending))
	for _, o := range pending {
		if o.OrderType == hitType {
			o.Status = OrderStatusFilled
			o.FilledQty = fillQty
			o.FilledPrice = fillPrice
			o.FilledAt = filledAt
		} else if o.OrderType == OrderTypeStopLoss || o.OrderType == OrderTypeTakeProfit {
			o.Status = OrderStatusCancelled
		}
		out = append(out, o)
	}
	return out
}
