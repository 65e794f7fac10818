package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

func TestDailyLockStopModeBlocksOnceTargetReached(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.DailyLockConfig{Enabled: true, Mode: config.DailyLockStop, TargetUSD: decimal.NewFromInt(100), Timezone: "UTC"}
	lock := NewDailyLock(cfg, nil, clk)

	allowed, _ := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(50))
	assert.True(t, allowed)

	allowed, reason := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(100))
	assert.False(t, allowed)
	assert.Contains(t, reason, "STOP")
}

func TestDailyLockOverdriveModeTrailsPeak(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.DailyLockConfig{
		Enabled: true, Mode: config.DailyLockOverdrive,
		TargetUSD: decimal.NewFromInt(100), OverdriveTrailingBuffer: decimal.NewFromInt(20),
		Timezone: "UTC",
	}
	lock := NewDailyLock(cfg, nil, clk)

	allowed, _ := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(100))
	assert.True(t, allowed, "reaching target in OVERDRIVE must not itself block entries")

	allowed, _ = lock.EntriesAllowed(context.Background(), decimal.NewFromInt(150))
	assert.True(t, allowed)

	allowed, reason := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(120))
	assert.False(t, allowed, "150 peak minus 20 buffer = 130 floor; 120 breaches it")
	assert.Contains(t, reason, "floor")
}

func TestDailyLockResetsOnNewDay(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC))
	cfg := config.DailyLockConfig{Enabled: true, Mode: config.DailyLockStop, TargetUSD: decimal.NewFromInt(100), Timezone: "UTC"}
	lock := NewDailyLock(cfg, nil, clk)

	allowed, _ := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(150))
	assert.False(t, allowed)

	clk.Advance(2 * time.Hour)
	allowed, _ = lock.EntriesAllowed(context.Background(), decimal.NewFromInt(0))
	assert.True(t, allowed, "a new UTC day must reset the engaged-today flag")
}

func TestDailyLockDisabledAlwaysAllows(t *testing.T) {
	clk := clock.NewFrozen(time.Now())
	cfg := config.DailyLockConfig{Enabled: false}
	lock := NewDailyLock(cfg, nil, clk)

	allowed, _ := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(100000))
	assert.True(t, allowed)
}

func TestDailyLockSeedPeakEngagesImmediatelyIfAlreadyAtTarget(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.DailyLockConfig{Enabled: true, Mode: config.DailyLockStop, TargetUSD: decimal.NewFromInt(100), Timezone: "UTC"}
	lock := NewDailyLock(cfg, nil, clk)
	lock.SeedPeak([]decimal.Decimal{decimal.NewFromInt(100)})

	allowed, reason := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(100))
	assert.False(t, allowed)
	assert.Contains(t, reason, "STOP")
}

func TestDailyLockSeedPeakReplaysIntradayHigh(t *testing.T) {
	// Trades +60 then -15 (net +45): the replayed cumulative peak is 60, so
	// with a 10 buffer the floor is 50 and the current 45 is already below
	// it — a restart must come back up paused, not unblocked.
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.DailyLockConfig{
		Enabled: true, Mode: config.DailyLockOverdrive,
		TargetUSD: decimal.NewFromInt(50), OverdriveTrailingBuffer: decimal.NewFromInt(10),
		Timezone: "UTC",
	}
	lock := NewDailyLock(cfg, nil, clk)
	lock.SeedPeak([]decimal.Decimal{decimal.NewFromInt(60), decimal.NewFromInt(-15)})

	allowed, reason := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(45))
	assert.False(t, allowed, "floor 60-10=50 must reject current pnl 45 after restart")
	assert.Contains(t, reason, "floor")
}

func TestDailyLockSeedPeakBelowTargetDoesNotEngage(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.DailyLockConfig{
		Enabled: true, Mode: config.DailyLockOverdrive,
		TargetUSD: decimal.NewFromInt(100), OverdriveTrailingBuffer: decimal.NewFromInt(10),
		Timezone: "UTC",
	}
	lock := NewDailyLock(cfg, nil, clk)
	lock.SeedPeak([]decimal.Decimal{decimal.NewFromInt(30), decimal.NewFromInt(-5)})

	allowed, _ := lock.EntriesAllowed(context.Background(), decimal.NewFromInt(25))
	assert.True(t, allowed, "a day that never reached target must not restore engaged")
}
