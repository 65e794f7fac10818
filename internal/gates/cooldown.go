package gates

import (
	"context"
	"time"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

// LastExitProvider reports when a symbol last closed a position via
// stop-loss, if ever. Satisfied by internal/persistence.Repository. Only
// stop-loss exits count: a take-profit close must never start a cooldown.
type LastExitProvider interface {
	LastStopLossExitTime(ctx context.Context, symbol string) (t time.Time, found bool, err error)
}

// CooldownGate is entry-gate step 6 (spec.md §4.4). Grounded on
// original_source/gates/cooldown_gate.py: rejects re-entry on a symbol
// within cooldown_minutes of its last stop-loss exit.
type CooldownGate struct {
	cfg   config.CooldownConfig
	exits LastExitProvider
	clock clock.Clock
}

func NewCooldownGate(cfg config.CooldownConfig, exits LastExitProvider, clk clock.Clock) *CooldownGate {
	return &CooldownGate{cfg: cfg, exits: exits, clock: clk}
}

func (g *CooldownGate) Name() string { return "cooldown" }

func (g *CooldownGate) Evaluate(ctx context.Context, symbol string) Result {
	if !g.cfg.Enabled {
		return Allow()
	}

	lastExit, found, err := g.exits.LastStopLossExitTime(ctx, symbol)
	if err != nil {
		return Reject("failed to load last stop-loss exit time: "+err.Error(), nil)
	}
	if !found {
		return Allow()
	}

	elapsed := g.clock.Now().Sub(lastExit)
	remaining := time.Duration(g.cfg.CooldownMinutes)*time.Minute - elapsed
	if remaining > 0 {
		return Reject("stop_loss_cooldown_active", map[string]any{
			"last_exit":              lastExit,
			"remaining_minutes":      remaining.Minutes(),
			"cooldown_minutes":       g.cfg.CooldownMinutes,
		})
	}
	return Allow()
}
