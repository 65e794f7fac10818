package gates

import (
	"context"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// MarketDataProvider supplies the candles and orderbook a gate needs to
// evaluate regime/breaker/sizing conditions. Injected at construction per
// spec.md §9 ("all injected collaborators are constructor parameters").
type MarketDataProvider interface {
	GetCandles(ctx context.Context, symbol string, limit int) ([]market.Candle, error)
	GetOrderbook(ctx context.Context, symbol string) (market.Orderbook, error)
}
