package indicators

// MACD holds the MACD line, its signal line, and the histogram
// (MACD - signal), all aligned with the input series.
type MACD struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// ComputeMACD computes the standard fast/slow/signal EMA-based MACD.
func ComputeMACD(values []float64, fast, slow, signal int) MACD {
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	line := make([]float64, len(values))
	for i := range values {
		if emaFast[i] == 0 || emaSlow[i] == 0 {
			continue
		}
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMA(line, signal)
	hist := make([]float64, len(values))
	for i := range values {
		if line[i] == 0 || sig[i] == 0 {
			continue
		}
		hist[i] = line[i] - sig[i]
	}
	return MACD{Line: line, Signal: sig, Histogram: hist}
}
