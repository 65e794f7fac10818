package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
)

func pctTrailingConfig() config.TrailingStopConfig {
	return config.TrailingStopConfig{
		Enabled:       true,
		Method:        config.TrailingStopPct,
		ActivationPct: decimal.NewFromInt(1), // activate after +1%
		TrailPct:      decimal.NewFromInt(2), // trail 2% below highest
	}
}

func TestTrailingStopStaysAtInitialBeforeActivation(t *testing.T) {
	m := NewTrailingStopManager(pctTrailingConfig())
	m.InitPosition("t1", decimal.NewFromInt(100), decimal.NewFromInt(95))

	// +0.5% is below the 1% activation threshold.
	stop := m.Update("t1", decimal.NewFromFloat(100.5), decimal.Zero)
	assert.True(t, stop.Equal(decimal.NewFromInt(95)))
}

func TestTrailingStopRatchetsUpAfterActivation(t *testing.T) {
	m := NewTrailingStopManager(pctTrailingConfig())
	m.InitPosition("t1", decimal.NewFromInt(100), decimal.NewFromInt(95))

	stop := m.Update("t1", decimal.NewFromInt(110), decimal.Zero)
	// 110 * 0.98 = 107.8
	assert.True(t, stop.Equal(decimal.NewFromFloat(107.8)), "stop was %s", stop)
}

func TestTrailingStopNeverDecreases(t *testing.T) {
	m := NewTrailingStopManager(pctTrailingConfig())
	m.InitPosition("t1", decimal.NewFromInt(100), decimal.NewFromInt(95))

	prices := []decimal.Decimal{
		decimal.NewFromInt(105),
		decimal.NewFromInt(112),
		decimal.NewFromInt(108), // pullback
		decimal.NewFromInt(101), // deeper pullback
		decimal.NewFromInt(115),
	}
	prev := decimal.NewFromInt(95)
	for _, p := range prices {
		stop := m.Update("t1", p, decimal.Zero)
		assert.False(t, stop.LessThan(prev), "stop retreated from %s to %s at price %s", prev, stop, p)
		prev = stop
	}
}

func TestTrailingStopATRMethod(t *testing.T) {
	cfg := config.TrailingStopConfig{
		Enabled:       true,
		Method:        config.TrailingStopATR,
		ActivationPct: decimal.NewFromInt(1),
		ATRMultiplier: decimal.NewFromInt(2),
	}
	m := NewTrailingStopManager(cfg)
	m.InitPosition("t1", decimal.NewFromInt(100), decimal.NewFromInt(95))

	// highest 110, ATR 3 -> stop = 110 - 2*3 = 104
	stop := m.Update("t1", decimal.NewFromInt(110), decimal.NewFromInt(3))
	assert.True(t, stop.Equal(decimal.NewFromInt(104)), "stop was %s", stop)

	// Zero ATR keeps the previous stop rather than collapsing it.
	stop = m.Update("t1", decimal.NewFromInt(111), decimal.Zero)
	assert.True(t, stop.Equal(decimal.NewFromInt(104)))
}

func TestTrailingStopShouldExit(t *testing.T) {
	m := NewTrailingStopManager(pctTrailingConfig())
	m.InitPosition("t1", decimal.NewFromInt(100), decimal.NewFromInt(95))

	m.Update("t1", decimal.NewFromInt(110), decimal.Zero) // stop -> 107.8
	assert.False(t, m.ShouldExit("t1", decimal.NewFromInt(109), decimal.Zero))
	assert.True(t, m.ShouldExit("t1", decimal.NewFromFloat(107.5), decimal.Zero))
}

func TestTrailingStopRemovePosition(t *testing.T) {
	m := NewTrailingStopManager(pctTrailingConfig())
	m.InitPosition("t1", decimal.NewFromInt(100), decimal.NewFromInt(95))
	m.RemovePosition("t1")
	_, ok := m.GetStopLevel("t1")
	assert.False(t, ok)
}
