package risk

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

// EventAppender is the minimal repository surface the daily lock needs.
// Declared locally (mirrors breakers.EventAppender) to avoid an import
// cycle with internal/persistence.
type EventAppender interface {
	AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error
}

// DailyLock implements spec.md §4.9: STOP mode blocks entries for the rest
// of the day once a PnL target is hit; OVERDRIVE mode keeps trading while
// protecting a trailing floor below the running peak of realized PnL.
type DailyLock struct {
	cfg    config.DailyLockConfig
	events EventAppender
	clock  clock.Clock
	loc    *time.Location

	mu           sync.Mutex
	currentDay   string
	engagedToday bool
	peak         decimal.Decimal
	pausedNow    bool
}

func NewDailyLock(cfg config.DailyLockConfig, events EventAppender, clk clock.Clock) *DailyLock {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		loc = time.UTC
	}
	return &DailyLock{cfg: cfg, events: events, clock: clk, loc: loc}
}

// SeedPeak reconstructs the running peak on startup by replaying today's
// closed-trade PnLs in exit order: the peak is the maximum the cumulative
// sum reached intraday, not the final net figure. A day of +60 then -15
// must restore peak=60, so a restart never loosens an already-trailing
// floor.
func (d *DailyLock) SeedPeak(todayClosedPnLs []decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentDay = d.dayKeyLocked()
	running := decimal.Zero
	for _, pnl := range todayClosedPnLs {
		running = running.Add(pnl)
		if running.GreaterThan(d.peak) {
			d.peak = running
		}
	}
	if d.cfg.Enabled && d.peak.GreaterThanOrEqual(d.cfg.TargetUSD) {
		d.engagedToday = true
	}
}

func (d *DailyLock) dayKeyLocked() string {
	return d.clock.Now().In(d.loc).Format("2006-01-02")
}

// EntriesAllowed reports whether entries may proceed given today's realized
// PnL, resetting day-scoped state on a UTC (or configured timezone) day
// boundary.
func (d *DailyLock) EntriesAllowed(ctx context.Context, todayRealizedPnL decimal.Decimal) (bool, string) {
	if !d.cfg.Enabled {
		return true, ""
	}

	d.mu.Lock()
	today := d.dayKeyLocked()
	if today != d.currentDay {
		d.currentDay = today
		d.engagedToday = false
		d.peak = decimal.Zero
		d.pausedNow = false
	}

	targetReached := todayRealizedPnL.GreaterThanOrEqual(d.cfg.TargetUSD)
	if targetReached && !d.engagedToday {
		d.engagedToday = true
		d.mu.Unlock()
		d.emit(ctx, "daily_lock.engaged", "INFO", map[string]any{
			"realized_pnl_usd": todayRealizedPnL, "target_usd": d.cfg.TargetUSD, "mode": d.cfg.Mode,
		})
		d.mu.Lock()
	}

	if !d.engagedToday {
		d.mu.Unlock()
		return true, ""
	}

	if d.cfg.Mode == config.DailyLockStop {
		d.mu.Unlock()
		return false, "daily_lock_engaged (STOP mode, target reached)"
	}

	// OVERDRIVE: track peak, gate on trailing floor.
	if todayRealizedPnL.GreaterThan(d.peak) {
		d.peak = todayRealizedPnL
		peak := d.peak
		d.mu.Unlock()
		d.emit(ctx, "daily_lock.floor_updated", "INFO", map[string]any{
			"peak_usd": peak, "floor_usd": peak.Sub(d.cfg.OverdriveTrailingBuffer),
		})
		d.mu.Lock()
	}

	floor := d.peak.Sub(d.cfg.OverdriveTrailingBuffer)
	breached := todayRealizedPnL.LessThan(floor)

	wasPaused := d.pausedNow
	d.pausedNow = breached
	d.mu.Unlock()

	if breached && !wasPaused {
		d.emit(ctx, "daily_lock.entries_paused", "WARN", map[string]any{
			"realized_pnl_usd": todayRealizedPnL, "floor_usd": floor,
		})
	} else if !breached && wasPaused {
		d.emit(ctx, "daily_lock.entries_resumed", "INFO", map[string]any{
			"realized_pnl_usd": todayRealizedPnL, "floor_usd": floor,
		})
	}

	if breached {
		return false, "profit floor breached"
	}
	return true, ""
}

func (d *DailyLock) emit(ctx context.Context, eventType, level string, payload map[string]any) {
	if d.events == nil {
		return
	}
	_ = d.events.AppendEvent(ctx, eventType, level, nil, payload, true)
}
