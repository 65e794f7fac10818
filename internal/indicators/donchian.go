package indicators

import "github.com/riverahendrick/quantsail-bot-sub001/internal/market"

// DonchianChannels holds the rolling period-high and period-low series.
type DonchianChannels struct {
	High []float64
	Low  []float64
}

// Donchian computes the highest-high and lowest-low over a trailing window
// of `period` candles (inclusive of the current candle). The breakout
// strategy indexes one bar back (candles[-2]) to compare against the prior
// closed channel rather than the still-forming current candle.
func Donchian(candles []market.Candle, period int) DonchianChannels {
	n := len(candles)
	out := DonchianChannels{High: make([]float64, n), Low: make([]float64, n)}
	if period <= 0 {
		return out
	}
	for i := 0; i < n; i++ {
		if i < period-1 {
			continue
		}
		hi := high(candles[i])
		lo := low(candles[i])
		for j := i - period + 1; j < i; j++ {
			if h := high(candles[j]); h > hi {
				hi = h
			}
			if l := low(candles[j]); l < lo {
				lo = l
			}
		}
		out.High[i] = hi
		out.Low[i] = lo
	}
	return out
}
