package indicators

// BollingerBands holds the three aligned bands: middle (SMA), upper, lower.
type BollingerBands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger computes Bollinger Bands: middle = SMA(period), upper/lower =
// middle +/- stdDevMultiplier * population stddev over the same window.
func Bollinger(values []float64, period int, stdDevMultiplier float64) BollingerBands {
	mid := SMA(values, period)
	std := StdDev(values, period)
	upper := make([]float64, len(values))
	lower := make([]float64, len(values))
	for i := range values {
		if mid[i] == 0 && std[i] == 0 {
			continue
		}
		band := stdDevMultiplier * std[i]
		upper[i] = mid[i] + band
		lower[i] = mid[i] - band
	}
	return BollingerBands{Middle: mid, Upper: upper, Lower: lower}
}
