package indicators

import (
	"testing"
	"time"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCandle(t *testing.T, ts time.Time, o, h, l, c, v float64) market.Candle {
	t.Helper()
	candle, err := market.NewCandle(ts,
		decimal.NewFromFloat(o), decimal.NewFromFloat(h),
		decimal.NewFromFloat(l), decimal.NewFromFloat(c), decimal.NewFromFloat(v))
	require.NoError(t, err)
	return candle
}

func flatCandles(t *testing.T, n int, price float64) []market.Candle {
	t.Helper()
	out := make([]market.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = mustCandle(t, base.Add(time.Duration(i)*time.Minute), price, price, price, price, 10)
	}
	return out
}

func TestSMAZeroBeforeWindowFills(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := SMA(values, 3)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.0, out[1])
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestRSIFlatSeriesIsFifty(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100
	}
	out := RSI(values, 14)
	assert.Equal(t, 50.0, out[14])
}

func TestRSIAllGainsSaturatesHundred(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = float64(100 + i)
	}
	out := RSI(values, 14)
	assert.Equal(t, 100.0, out[14])
}

func TestTrueRangeFirstCandleIsHighMinusLow(t *testing.T) {
	candles := []market.Candle{
		mustCandle(t, time.Now(), 10, 12, 9, 11, 5),
		mustCandle(t, time.Now(), 11, 13, 10, 12, 5),
	}
	tr := TrueRange(candles)
	assert.InDelta(t, 3.0, tr[0], 1e-9)
}

func TestATRZeroWhenInsufficientData(t *testing.T) {
	candles := flatCandles(t, 5, 100)
	out := ATR(candles, 14)
	for _, v := range out {
		assert.Equal(t, 0.0, v)
	}
}

func TestATRFlatCandlesIsZero(t *testing.T) {
	candles := flatCandles(t, 30, 100)
	out := ATR(candles, 14)
	assert.InDelta(t, 0.0, out[29], 1e-9)
}

func TestATRPercentScalesByClose(t *testing.T) {
	candles := flatCandles(t, 30, 100)
	for i := 15; i < 20; i++ {
		candles[i] = mustCandle(t, candles[i].Timestamp, 100, 110, 90, 100, 10)
	}
	pct := ATRPercent(candles, 14)
	assert.Greater(t, pct[29], 0.0)
}
