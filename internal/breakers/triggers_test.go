package breakers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

func mustCandle(t *testing.T, o, h, l, c float64) market.Candle {
	t.Helper()
	candle, err := market.NewCandle(time.Now(),
		decimal.NewFromFloat(o), decimal.NewFromFloat(h),
		decimal.NewFromFloat(l), decimal.NewFromFloat(c), decimal.NewFromInt(10))
	require.NoError(t, err)
	return candle
}

func TestCheckVolatilitySpikeFiresAboveATRMultiple(t *testing.T) {
	cfg := config.VolatilityBreakerConfig{Enabled: true, ATRMultiplePause: decimal.NewFromFloat(2), PauseMinutes: 30}
	candles := []market.Candle{mustCandle(t, 100, 110, 90, 105)}
	fired, ctx := CheckVolatilitySpike(cfg, candles, []float64{5})
	assert.True(t, fired)
	assert.InDelta(t, 20.0, ctx["candle_range"], 1e-9)
}

func TestCheckVolatilitySpikeDoesNotFireBelowThreshold(t *testing.T) {
	cfg := config.VolatilityBreakerConfig{Enabled: true, ATRMultiplePause: decimal.NewFromFloat(5), PauseMinutes: 30}
	candles := []market.Candle{mustCandle(t, 100, 103, 99, 101)}
	fired, _ := CheckVolatilitySpike(cfg, candles, []float64{5})
	assert.False(t, fired)
}

func TestCheckVolatilitySpikeDisabledNeverFires(t *testing.T) {
	cfg := config.VolatilityBreakerConfig{Enabled: false, ATRMultiplePause: decimal.NewFromFloat(0), PauseMinutes: 30}
	candles := []market.Candle{mustCandle(t, 100, 999, 1, 500)}
	fired, _ := CheckVolatilitySpike(cfg, candles, []float64{1})
	assert.False(t, fired)
}

func TestCheckSpreadSlippageSpikeFiresAboveMaxBps(t *testing.T) {
	cfg := config.SpreadSlippageBreakerConfig{Enabled: true, MaxSpreadBps: decimal.NewFromInt(10), PauseMinutes: 15}
	ob, err := market.NewOrderbook(
		[]market.Level{{Price: decimal.NewFromFloat(99), Quantity: decimal.NewFromInt(1)}},
		[]market.Level{{Price: decimal.NewFromFloat(101), Quantity: decimal.NewFromInt(1)}},
	)
	require.NoError(t, err)
	fired, ctx := CheckSpreadSlippageSpike(cfg, ob)
	assert.True(t, fired)
	assert.Greater(t, ctx["spread_bps"], 10.0)
}

func TestCheckSpreadSlippageSpikeWithinBoundsDoesNotFire(t *testing.T) {
	cfg := config.SpreadSlippageBreakerConfig{Enabled: true, MaxSpreadBps: decimal.NewFromInt(100), PauseMinutes: 15}
	ob, err := market.NewOrderbook(
		[]market.Level{{Price: decimal.NewFromFloat(99.95), Quantity: decimal.NewFromInt(1)}},
		[]market.Level{{Price: decimal.NewFromFloat(100.05), Quantity: decimal.NewFromInt(1)}},
	)
	require.NoError(t, err)
	fired, _ := CheckSpreadSlippageSpike(cfg, ob)
	assert.False(t, fired)
}

type fakeHistory struct {
	trades []ClosedTrade
	err    error
}

func (f fakeHistory) GetRecentClosedTrades(ctx context.Context, limit int) ([]ClosedTrade, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.trades) {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}

func TestCheckConsecutiveLossesFiresAtThreshold(t *testing.T) {
	cfg := config.ConsecutiveLossesBreakerConfig{Enabled: true, MaxLosses: 3, PauseMinutes: 60}
	history := fakeHistory{trades: []ClosedTrade{
		{ID: "t3", RealizedPnLUSD: decimal.NewFromFloat(-5)},
		{ID: "t2", RealizedPnLUSD: decimal.NewFromFloat(-2)},
		{ID: "t1", RealizedPnLUSD: decimal.NewFromFloat(-1)},
	}}
	fired, ctx, err := CheckConsecutiveLosses(context.Background(), cfg, history)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 3, ctx["consecutive_losses"])
}

func TestCheckConsecutiveLossesStopsAtFirstWinner(t *testing.T) {
	cfg := config.ConsecutiveLossesBreakerConfig{Enabled: true, MaxLosses: 3, PauseMinutes: 60}
	history := fakeHistory{trades: []ClosedTrade{
		{ID: "t4", RealizedPnLUSD: decimal.NewFromFloat(-5)},
		{ID: "t3", RealizedPnLUSD: decimal.NewFromFloat(2)},
		{ID: "t2", RealizedPnLUSD: decimal.NewFromFloat(-2)},
		{ID: "t1", RealizedPnLUSD: decimal.NewFromFloat(-1)},
	}}
	fired, _, err := CheckConsecutiveLosses(context.Background(), cfg, history)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestCheckConsecutiveLossesPropagatesRepositoryError(t *testing.T) {
	cfg := config.ConsecutiveLossesBreakerConfig{Enabled: true, MaxLosses: 2, PauseMinutes: 60}
	history := fakeHistory{err: errors.New("db unavailable")}
	_, _, err := CheckConsecutiveLosses(context.Background(), cfg, history)
	assert.Error(t, err)
}
