package gates

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

// PortfolioSnapshot is the current book-wide state the portfolio risk
// manager gate evaluates a new entry against.
type PortfolioSnapshot struct {
	OpenPositions          int
	CorrelatedOpenPositions int
	DailyTradesCount       int
	DailyRealizedPnLUSD    decimal.Decimal
	CurrentExposureUSD     decimal.Decimal
	EquityUSD              decimal.Decimal
}

// PortfolioStateProvider is satisfied by internal/persistence.Repository;
// declared locally to avoid a gates -> persistence import cycle.
type PortfolioStateProvider interface {
	Snapshot(ctx context.Context, symbol string) (PortfolioSnapshot, error)
}

// PortfolioRiskGate is entry-gate step 5 (spec.md §4.4). Grounded on
// original_source/core/portfolio_risk_manager.py: rejects when any
// book-wide limit is already at or past its ceiling.
type PortfolioRiskGate struct {
	symbolsCfg    config.SymbolsConfig
	portfolioCfg  config.PortfolioConfig
	state         PortfolioStateProvider
}

func NewPortfolioRiskGate(symbolsCfg config.SymbolsConfig, portfolioCfg config.PortfolioConfig, state PortfolioStateProvider) *PortfolioRiskGate {
	return &PortfolioRiskGate{symbolsCfg: symbolsCfg, portfolioCfg: portfolioCfg, state: state}
}

func (g *PortfolioRiskGate) Name() string { return "portfolio_risk_manager" }

func (g *PortfolioRiskGate) Evaluate(ctx context.Context, symbol string) Result {
	snap, err := g.state.Snapshot(ctx, symbol)
	if err != nil {
		return Reject("failed to load portfolio snapshot: "+err.Error(), nil)
	}

	if snap.OpenPositions >= g.symbolsCfg.MaxConcurrentPositions {
		return Reject("max concurrent positions reached", map[string]any{
			"open_positions": snap.OpenPositions, "max": g.symbolsCfg.MaxConcurrentPositions,
		})
	}
	if snap.CorrelatedOpenPositions >= g.portfolioCfg.MaxCorrelatedPositions {
		return Reject("max correlated positions reached", map[string]any{
			"correlated_open": snap.CorrelatedOpenPositions, "max": g.portfolioCfg.MaxCorrelatedPositions,
		})
	}
	if snap.DailyTradesCount >= g.portfolioCfg.MaxDailyTrades {
		return Reject("max daily trades reached", map[string]any{
			"daily_trades": snap.DailyTradesCount, "max": g.portfolioCfg.MaxDailyTrades,
		})
	}
	if snap.DailyRealizedPnLUSD.Neg().GreaterThanOrEqual(g.portfolioCfg.MaxDailyLossUSD) {
		return Reject("max daily loss reached", map[string]any{
			"daily_realized_pnl_usd": snap.DailyRealizedPnLUSD, "max_daily_loss_usd": g.portfolioCfg.MaxDailyLossUSD,
		})
	}

	if snap.EquityUSD.IsPositive() {
		exposurePct := snap.CurrentExposureUSD.Div(snap.EquityUSD).Mul(decimal.NewFromInt(100))
		if exposurePct.GreaterThanOrEqual(g.portfolioCfg.MaxPortfolioExposurePct) {
			return Reject("max portfolio exposure reached", map[string]any{
				"exposure_pct": exposurePct, "max_exposure_pct": g.portfolioCfg.MaxPortfolioExposurePct,
			})
		}
	}

	return Allow()
}
