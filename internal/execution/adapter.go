// Package execution turns an approved TradePlan into a live or simulated
// fill and later decides whether an open position should be closed.
// Grounded on original_source/execution/*.py and the teacher's Broker
// interface (broker.go) plus its four concrete backends.
package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// PlacedOrder is a normalized view of an order fill, independent of which
// exchange backend produced it. Grounded on chidi150c-coinbase/broker.go's
// PlacedOrder.
type PlacedOrder struct {
	ID            string
	Symbol        string
	Side          market.Side
	AvgPrice      decimal.Decimal
	FilledQty     decimal.Decimal
	CommissionUSD decimal.Decimal
	FilledAt      time.Time
}

// ExchangeAdapter is the minimal surface execution needs from a venue.
// Grounded on chidi150c-coinbase/broker.go's Broker interface, trimmed to
// what spot market-order entry/exit needs (no maker/post-only order types —
// spec.md's execution model is market-order only).
type ExchangeAdapter interface {
	Name() string
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side market.Side, quantity decimal.Decimal) (PlacedOrder, error)
}
