package breakers

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

type recordingEvents struct {
	events []string
}

func (r *recordingEvents) AppendEvent(ctx context.Context, eventType, level string, symbol *string, payload map[string]any, publicSafe bool) error {
	r.events = append(r.events, eventType)
	return nil
}

type alwaysNews bool

func (a alwaysNews) IsNegativeNewsActive(ctx context.Context) bool { return bool(a) }

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		Volatility:        config.VolatilityBreakerConfig{Enabled: true, ATRMultiplePause: decimal.NewFromFloat(2), PauseMinutes: 30},
		SpreadSlippage:    config.SpreadSlippageBreakerConfig{Enabled: true, MaxSpreadBps: decimal.NewFromInt(50), PauseMinutes: 15},
		ConsecutiveLosses: config.ConsecutiveLossesBreakerConfig{Enabled: true, MaxLosses: 3, PauseMinutes: 60},
		News:              config.NewsBreakerConfig{Enabled: true},
	}
}

func TestManagerEntriesAllowedByDefault(t *testing.T) {
	events := &recordingEvents{}
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mgr := NewManager(testBreakerConfig(), events, alwaysNews(false), clk)

	allowed, reason := mgr.EntriesAllowed(context.Background())
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestManagerNewsPauseBlocksEntriesButNotExits(t *testing.T) {
	events := &recordingEvents{}
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mgr := NewManager(testBreakerConfig(), events, alwaysNews(true), clk)

	allowed, reason := mgr.EntriesAllowed(context.Background())
	assert.False(t, allowed)
	assert.Contains(t, reason, "news")

	exitsAllowed, _ := mgr.ExitsAllowed()
	assert.True(t, exitsAllowed)
}

func TestManagerTriggerBlocksEntriesUntilExpiry(t *testing.T) {
	events := &recordingEvents{}
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mgr := NewManager(testBreakerConfig(), events, alwaysNews(false), clk)

	mgr.Trigger(context.Background(), "volatility", "test trip", 10, map[string]float64{"x": 1})
	allowed, reason := mgr.EntriesAllowed(context.Background())
	assert.False(t, allowed)
	assert.Contains(t, reason, "volatility")
	assert.Contains(t, events.events, "breaker.triggered")

	clk.Advance(11 * time.Minute)
	allowed, _ = mgr.EntriesAllowed(context.Background())
	assert.True(t, allowed)
	assert.Contains(t, events.events, "breaker.expired")
}

func TestManagerRunChecksTripsVolatilityBreaker(t *testing.T) {
	events := &recordingEvents{}
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mgr := NewManager(testBreakerConfig(), events, alwaysNews(false), clk)

	candles := make([]market.Candle, 25)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		c, err := market.NewCandle(base.Add(time.Duration(i)*time.Minute),
			decimal.NewFromFloat(100), decimal.NewFromFloat(100.5),
			decimal.NewFromFloat(99.5), decimal.NewFromFloat(100), decimal.NewFromInt(10))
		require.NoError(t, err)
		candles[i] = c
	}
	spike, err := market.NewCandle(base.Add(25*time.Minute),
		decimal.NewFromFloat(100), decimal.NewFromFloat(150),
		decimal.NewFromFloat(50), decimal.NewFromFloat(100), decimal.NewFromInt(10))
	require.NoError(t, err)
	candles = append(candles, spike)

	ob, err := market.NewOrderbook(
		[]market.Level{{Price: decimal.NewFromFloat(99.99), Quantity: decimal.NewFromInt(1)}},
		[]market.Level{{Price: decimal.NewFromFloat(100.01), Quantity: decimal.NewFromInt(1)}},
	)
	require.NoError(t, err)

	mgr.RunChecks(context.Background(), candles, ob, nil)

	allowed, reason := mgr.EntriesAllowed(context.Background())
	assert.False(t, allowed)
	assert.Contains(t, reason, "volatility")
}

func TestManagerRunChecksTripsConsecutiveLosses(t *testing.T) {
	events := &recordingEvents{}
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mgr := NewManager(testBreakerConfig(), events, alwaysNews(false), clk)

	ob, err := market.NewOrderbook(
		[]market.Level{{Price: decimal.NewFromFloat(99.99), Quantity: decimal.NewFromInt(1)}},
		[]market.Level{{Price: decimal.NewFromFloat(100.01), Quantity: decimal.NewFromInt(1)}},
	)
	require.NoError(t, err)

	history := fakeHistory{trades: []ClosedTrade{
		{ID: "t3", RealizedPnLUSD: decimal.NewFromFloat(-5)},
		{ID: "t2", RealizedPnLUSD: decimal.NewFromFloat(-2)},
		{ID: "t1", RealizedPnLUSD: decimal.NewFromFloat(-1)},
	}}

	mgr.RunChecks(context.Background(), nil, ob, history)

	reason, active := mgr.ActiveBreakerReason(context.Background())
	assert.True(t, active)
	assert.Contains(t, reason, "consecutive_losses")
}
