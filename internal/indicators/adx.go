package indicators

import "github.com/riverahendrick/quantsail-bot-sub001/internal/market"

// ADX computes the Average Directional Index with Wilder smoothing of the
// directional movement and true range series, then Wilder-smooths the
// resulting DX series into ADX. Positions before 2*period bars (enough data
// for the DX series itself to stabilize) are zero, matching the regime
// filter's own `len(candles) < adx_period+20` guard in original_source.
func ADX(candles []market.Candle, period int) []float64 {
	n := len(candles)
	out := make([]float64, n)
	if period <= 0 || n <= period*2 {
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := TrueRange(candles)

	for i := 1; i < n; i++ {
		upMove := high(candles[i]) - high(candles[i-1])
		downMove := low(candles[i-1]) - low(candles[i])
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := wilderSmooth(tr, period)
	smoothPlusDM := wilderSmooth(plusDM, period)
	smoothMinusDM := wilderSmooth(minusDM, period)

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if smoothTR[i] == 0 {
			continue
		}
		plusDI := 100 * smoothPlusDM[i] / smoothTR[i]
		minusDI := 100 * smoothMinusDM[i] / smoothTR[i]
		sum := plusDI + minusDI
		if sum == 0 {
			continue
		}
		dx[i] = 100 * abs(plusDI-minusDI) / sum
	}

	// ADX is the Wilder-smoothed average of DX, seeded at 2*period.
	seedStart := period * 2
	if seedStart >= n {
		return out
	}
	var seed float64
	for i := period; i < seedStart; i++ {
		seed += dx[i]
	}
	seed /= float64(period)
	out[seedStart-1] = seed

	adx := seed
	for i := seedStart; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		out[i] = adx
	}
	return out
}

// wilderSmooth applies Wilder's running-average smoothing to a raw series:
// the seed is a simple sum of values[1..period] (index 0 has no previous bar
// and is skipped), stored at index period, then each later value rolls
// forward as prev - prev/period + v.
func wilderSmooth(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	var sum float64
	for i := 1; i <= period; i++ {
		sum += values[i]
	}
	out[period] = sum
	prev := sum
	for i := period + 1; i < len(values); i++ {
		prev = prev - prev/float64(period) + values[i]
		out[i] = prev
	}
	return out
}

func high(c market.Candle) float64 { v, _ := c.High.Float64(); return v }
func low(c market.Candle) float64  { v, _ := c.Low.Float64(); return v }
