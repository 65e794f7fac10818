package gates

import (
	"context"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/breakers"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

// DailySymbolHistoryProvider returns a symbol's closed trades for the
// current trading day, newest first. Satisfied by
// internal/persistence.Repository.
type DailySymbolHistoryProvider interface {
	GetTodayClosedTradesForSymbol(ctx context.Context, symbol string) ([]breakers.ClosedTrade, error)
}

// DailySymbolLimitGate is entry-gate step 7 (spec.md §4.4). Grounded on
// original_source/gates/daily_symbol_limit.py: rejects re-entry on a symbol
// that has already lost max_consecutive_losses times today, distinct from
// the book-wide consecutive-losses circuit breaker.
type DailySymbolLimitGate struct {
	cfg     config.DailySymbolLimitConfig
	history DailySymbolHistoryProvider
}

func NewDailySymbolLimitGate(cfg config.DailySymbolLimitConfig, history DailySymbolHistoryProvider) *DailySymbolLimitGate {
	return &DailySymbolLimitGate{cfg: cfg, history: history}
}

func (g *DailySymbolLimitGate) Name() string { return "daily_symbol_loss_limit" }

func (g *DailySymbolLimitGate) Evaluate(ctx context.Context, symbol string) Result {
	if !g.cfg.Enabled {
		return Allow()
	}

	trades, err := g.history.GetTodayClosedTradesForSymbol(ctx, symbol)
	if err != nil {
		return Reject("failed to load today's trades for symbol: "+err.Error(), nil)
	}

	consecutiveLosses := 0
	for _, t := range trades {
		if t.RealizedPnLUSD.IsNegative() {
			consecutiveLosses++
			continue
		}
		break
	}

	if consecutiveLosses >= g.cfg.MaxConsecutiveLosses {
		return Reject("symbol daily consecutive loss limit reached", map[string]any{
			"consecutive_losses": consecutiveLosses,
			"max_consecutive_losses": g.cfg.MaxConsecutiveLosses,
		})
	}
	return Allow()
}
