// Package exchange adapts venue connectivity into execution.ExchangeAdapter
// and gates.MarketDataProvider. Grounded on chidi150c-coinbase's broker_*.go
// family: each adapter here is a direct transform of one (or a
// consolidation of several near-identical) teacher broker file(s).
package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/execution"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// PaperAdapter simulates fills against the last price it was told about.
// Grounded on chidi150c-coinbase/broker_paper.go's PaperBroker: no external
// dependencies, a single mutable price, orders fill instantly at that price.
// Used for dry-run mode and local smoke tests.
type PaperAdapter struct {
	mu    sync.Mutex
	price decimal.Decimal
	spread decimal.Decimal
}

// NewPaperAdapter seeds the simulated book with a starting price and a
// fixed absolute spread used to synthesize a one-level orderbook.
func NewPaperAdapter(startPrice, spread decimal.Decimal) *PaperAdapter {
	return &PaperAdapter{price: startPrice, spread: spread}
}

func (p *PaperAdapter) Name() string { return "paper" }

// SetPrice lets the caller (e.g. a backtest driver replaying candles) move
// the simulated mark price between ticks.
func (p *PaperAdapter) SetPrice(price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.price = price
}

func (p *PaperAdapter) currentPrice() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price
}

func (p *PaperAdapter) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price := p.currentPrice()
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("exchange: paper adapter has no seeded price for %s", symbol)
	}
	return price, nil
}

// GetOrderbook synthesizes a single-level book around the mid price using
// the configured spread; the paper broker never had real depth data
// (broker_paper.go's GetRecentCandles is likewise a documented stub).
func (p *PaperAdapter) GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error) {
	mid, err := p.GetPrice(ctx, symbol)
	if err != nil {
		return market.Orderbook{}, err
	}
	half := p.spread.Div(decimal.NewFromInt(2))
	bid := mid.Sub(half)
	ask := mid.Add(half)
	return market.NewOrderbook(
		[]market.Level{{Price: bid, Quantity: decimal.NewFromInt(1)}},
		[]market.Level{{Price: ask, Quantity: decimal.NewFromInt(1)}},
	)
}

// GetCandles is unsupported: broker_paper.go documents the same limitation
// ("paper broker has no candles; use bridge or CSV"). When this adapter
// backs the engine, the candle-based entry gates (ensemble, regime, position
// sizer) reject every entry, the loop skips its breaker checks, and the
// trailing stop is updated with a zero ATR.
func (p *PaperAdapter) GetCandles(ctx context.Context, symbol string, limit int) ([]market.Candle, error) {
	return nil, fmt.Errorf("exchange: paper adapter has no candle feed for %s (use a real venue adapter for trailing-stop ATR)", symbol)
}

// PlaceMarketOrder simulates an instant fill at the current price, mirroring
// PaperBroker.PlaceMarketQuote's quoteUSD/price -> base conversion, adapted
// to quantity-denominated orders.
func (p *PaperAdapter) PlaceMarketOrder(ctx context.Context, symbol string, side market.Side, quantity decimal.Decimal) (execution.PlacedOrder, error) {
	if !quantity.IsPositive() {
		return execution.PlacedOrder{}, fmt.Errorf("exchange: paper order quantity must be > 0")
	}
	price := p.currentPrice()
	if !price.IsPositive() {
		return execution.PlacedOrder{}, fmt.Errorf("exchange: paper adapter has no seeded price for %s", symbol)
	}
	return execution.PlacedOrder{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		AvgPrice:      price,
		FilledQty:     quantity,
		CommissionUSD: decimal.Zero,
		FilledAt:      time.Now().UTC(),
	}, nil
}
