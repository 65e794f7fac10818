// Package indicators implements the deterministic list-in/list-out
// technical indicators spec.md §4.6 names: EMA, SMA, RSI, ATR, ADX,
// Bollinger, Donchian, MACD, OBV, VWAP. Every function returns a slice
// aligned 1:1 with its input, with positions before sufficient data set to
// zero — matching the teacher's indicators.go convention (SMA/RSI/ZScore)
// and original_source/indicators/*.py's formulas, generalized to cover the
// full strategy set rather than just the teacher's single decide() blend.
package indicators

import (
	"math"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/market"
)

// SMA computes the simple moving average over period. Positions before the
// window is full are zero.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// StdDev computes the population standard deviation over a trailing window,
// aligned with SMA's zero-fill convention.
func StdDev(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		return out
	}
	means := SMA(values, period)
	for i := range values {
		if i < period-1 {
			continue
		}
		var sumSq float64
		m := means[i]
		for j := i - period + 1; j <= i; j++ {
			diff := values[j] - m
			sumSq += diff * diff
		}
		out[i] = math.Sqrt(sumSq / float64(period))
	}
	return out
}

// Closes extracts the close price series from a candle slice as float64,
// the boundary conversion point between decimal.Decimal ledger values and
// float64 indicator math (SPEC_FULL.md §3).
func Closes(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		f, _ := c.Close.Float64()
		out[i] = f
	}
	return out
}
