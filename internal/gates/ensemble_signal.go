package gates

import (
	"context"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// SignalAnalyzer is satisfied by *ensemble.Combiner; declared locally so
// gates does not import internal/ensemble directly.
type SignalAnalyzer interface {
	Analyze(symbol string, candles []market.Candle, ob market.Orderbook, cfg config.BotConfig) market.Signal
}

// EnsembleSignalGate is entry-gate step 4 (spec.md §4.4): rejects unless the
// strategy ensemble's consensus signal is ENTER_LONG. The winning Signal,
// candles and orderbook are returned on the Payload, which the trading loop
// merges into its plan payload; later gates load their own market data and
// do not read it.
type EnsembleSignalGate struct {
	cfg      config.BotConfig
	ensemble SignalAnalyzer
	provider MarketDataProvider
	candleLimit int
}

func NewEnsembleSignalGate(cfg config.BotConfig, ensemble SignalAnalyzer, provider MarketDataProvider, candleLimit int) *EnsembleSignalGate {
	return &EnsembleSignalGate{cfg: cfg, ensemble: ensemble, provider: provider, candleLimit: candleLimit}
}

func (g *EnsembleSignalGate) Name() string { return "ensemble_signal" }

func (g *EnsembleSignalGate) Evaluate(ctx context.Context, symbol string) Result {
	candles, err := g.provider.GetCandles(ctx, symbol, g.candleLimit)
	if err != nil {
		return Reject("failed to load candles for ensemble: "+err.Error(), nil)
	}
	ob, err := g.provider.GetOrderbook(ctx, symbol)
	if err != nil {
		return Reject("failed to load orderbook for ensemble: "+err.Error(), nil)
	}

	signal := g.ensemble.Analyze(symbol, candles, ob, g.cfg)
	if signal.Type != market.SignalEnterLong {
		return Reject("no ENTER_LONG consensus", map[string]any{"signal": string(signal.Type)})
	}
	return Result{
		Allowed: true,
		Payload: map[string]any{"signal": signal, "candles": candles, "orderbook": ob},
	}
}
