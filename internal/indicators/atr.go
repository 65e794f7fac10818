package indicators

import "github.com/riverahendrick/quantsail-bot-sub001/internal/market"

// TrueRange returns the per-candle true range: max(high-low, |high-prevClose|,
// |low-prevClose|). The first candle has no previous close, so its true
// range is simply high-low.
func TrueRange(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		high, _ := c.High.Float64()
		low, _ := c.Low.Float64()
		if i == 0 {
			out[i] = high - low
			continue
		}
		prevClose, _ := candles[i-1].Close.Float64()
		tr := high - low
		if v := abs(high - prevClose); v > tr {
			tr = v
		}
		if v := abs(low - prevClose); v > tr {
			tr = v
		}
		out[i] = tr
	}
	return out
}

// ATR computes the Average True Range with Wilder smoothing: the first
// value is a simple average of the first `period` true ranges, and every
// later value rolls forward with Wilder's running average
// ((prev*(period-1)+tr)/period) — matching RSI's smoothing shape and
// original_source's ATR usage across breakout/trailing-stop/breaker code.
func ATR(candles []market.Candle, period int) []float64 {
	tr := TrueRange(candles)
	out := make([]float64, len(tr))
	if period <= 0 || len(tr) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	avg := sum / float64(period)
	out[period-1] = avg

	for i := period; i < len(tr); i++ {
		avg = (avg*float64(period-1) + tr[i]) / float64(period)
		out[i] = avg
	}
	return out
}

// ATRPercent expresses ATR as a percentage of the candle's close, the form
// the regime filter classifies volatility on.
func ATRPercent(candles []market.Candle, period int) []float64 {
	atr := ATR(candles, period)
	out := make([]float64, len(candles))
	for i, c := range candles {
		if atr[i] == 0 {
			continue
		}
		close, _ := c.Close.Float64()
		if close == 0 {
			continue
		}
		out[i] = (atr[i] / close) * 100.0
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
