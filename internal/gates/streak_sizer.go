package gates

import (
	"context"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/breakers"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

// StreakSizerGate is entry-gate step 8 (spec.md §4.4). Grounded on
// original_source/gates/streak_sizer.py: never rejects, but after
// min_consecutive_losses straight losing trades it reports a reduced
// size_multiplier on Payload. Neither the position sizer gate nor the
// trading loop's plan builder reads that value, so it does not change the
// entry quantity.
type StreakSizerGate struct {
	cfg     config.StreakSizerConfig
	history breakers.TradeHistoryProvider
}

func NewStreakSizerGate(cfg config.StreakSizerConfig, history breakers.TradeHistoryProvider) *StreakSizerGate {
	return &StreakSizerGate{cfg: cfg, history: history}
}

func (g *StreakSizerGate) Name() string { return "streak_sizer" }

func (g *StreakSizerGate) Evaluate(ctx context.Context, symbol string) Result {
	if !g.cfg.Enabled {
		return Result{Allowed: true, Payload: map[string]any{"size_multiplier": 1.0}}
	}

	recent, err := g.history.GetRecentClosedTrades(ctx, g.cfg.MinConsecutiveLosses+5)
	if err != nil {
		return Result{Allowed: true, Payload: map[string]any{"size_multiplier": 1.0}}
	}

	consecutiveLosses := 0
	for _, t := range recent {
		if t.RealizedPnLUSD.IsNegative() {
			consecutiveLosses++
			continue
		}
		break
	}

	multiplier := 1.0
	if consecutiveLosses >= g.cfg.MinConsecutiveLosses {
		reduction, _ := g.cfg.ReductionFactor.Float64()
		multiplier = reduction
	}

	return Result{
		Allowed: true,
		Payload: map[string]any{"size_multiplier": multiplier, "consecutive_losses": consecutiveLosses},
	}
}
