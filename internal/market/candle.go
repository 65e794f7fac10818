// Package market defines the value types that flow through the pipeline:
// candles, orderbook snapshots, signals, and strategy outputs. Grounded on
// original_source/models/candle.py, signal.py, strategy.py — translated
// from frozen dataclasses into immutable Go structs constructed only
// through validating constructors.
package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is an immutable OHLCV bar. Construct via NewCandle so the
// high/low/volume invariants from spec.md §3 are always enforced.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// NewCandle validates high >= max(open,close,low), low <= min(open,close,high),
// and volume >= 0, matching Candle.__post_init__ in the Python source.
func NewCandle(ts time.Time, open, high, low, close, volume decimal.Decimal) (Candle, error) {
	maxOCL := decimal.Max(open, close, low)
	if high.LessThan(maxOCL) {
		return Candle{}, fmt.Errorf("candle: high (%s) must be >= open/close/low", high)
	}
	minOCH := decimal.Min(open, close, high)
	if low.GreaterThan(minOCH) {
		return Candle{}, fmt.Errorf("candle: low (%s) must be <= open/close/high", low)
	}
	if volume.IsNegative() {
		return Candle{}, fmt.Errorf("candle: volume (%s) must be non-negative", volume)
	}
	return Candle{Timestamp: ts.UTC(), Open: open, High: high, Low: low, Close: close, Volume: volume}, nil
}

// Level is a single price/quantity pair on one side of the book.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Orderbook is a top-of-book-plus-depth snapshot: bids descending, asks
// ascending, at least one level each side (spec.md §3).
type Orderbook struct {
	Bids []Level
	Asks []Level
}

// NewOrderbook validates ordering and non-emptiness per spec.md §3.
func NewOrderbook(bids, asks []Level) (Orderbook, error) {
	if len(bids) == 0 {
		return Orderbook{}, fmt.Errorf("orderbook: must have at least one bid")
	}
	if len(asks) == 0 {
		return Orderbook{}, fmt.Errorf("orderbook: must have at least one ask")
	}
	for i := 1; i < len(bids); i++ {
		if !bids[i-1].Price.GreaterThan(bids[i].Price) {
			return Orderbook{}, fmt.Errorf("orderbook: bid prices must be strictly descending")
		}
	}
	for i := 1; i < len(asks); i++ {
		if !asks[i].Price.GreaterThan(asks[i-1].Price) {
			return Orderbook{}, fmt.Errorf("orderbook: ask prices must be strictly ascending")
		}
	}
	return Orderbook{Bids: bids, Asks: asks}, nil
}

func (ob Orderbook) BestBid() decimal.Decimal { return ob.Bids[0].Price }
func (ob Orderbook) BestAsk() decimal.Decimal { return ob.Asks[0].Price }

func (ob Orderbook) Spread() decimal.Decimal {
	return ob.BestAsk().Sub(ob.BestBid())
}

func (ob Orderbook) Mid() decimal.Decimal {
	return ob.BestBid().Add(ob.BestAsk()).Div(decimal.NewFromInt(2))
}
