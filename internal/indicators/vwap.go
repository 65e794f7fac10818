package indicators

import "github.com/riverahendrick/quantsail-bot-sub001/internal/market"

// VWAP computes the cumulative Volume-Weighted Average Price over the
// entire candle series (session-to-date convention): sum(typicalPrice*volume)
// / sum(volume), where typicalPrice = (high+low+close)/3.
func VWAP(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	var cumPV, cumVol float64
	for i, c := range candles {
		high, _ := c.High.Float64()
		low, _ := c.Low.Float64()
		closeP, _ := c.Close.Float64()
		vol, _ := c.Volume.Float64()
		typical := (high + low + closeP) / 3.0
		cumPV += typical * vol
		cumVol += vol
		if cumVol > 0 {
			out[i] = cumPV / cumVol
		}
	}
	return out
}
