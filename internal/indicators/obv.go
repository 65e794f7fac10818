package indicators

import "github.com/riverahendrick/quantsail-bot-sub001/internal/market"

// OBV computes On-Balance Volume: a running total that adds the candle's
// volume when close rises, subtracts it when close falls, and leaves the
// total unchanged on a flat close.
func OBV(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	var running float64
	for i, c := range candles {
		if i == 0 {
			out[i] = running
			continue
		}
		closeNow, _ := c.Close.Float64()
		closePrev, _ := candles[i-1].Close.Float64()
		vol, _ := c.Volume.Float64()
		switch {
		case closeNow > closePrev:
			running += vol
		case closeNow < closePrev:
			running -= vol
		}
		out[i] = running
	}
	return out
}
