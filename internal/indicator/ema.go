package indicator

// EMA returns the exponential moving average of data with multiplier 2/(period+1),
// seeded with the first sample. Empty input returns 0.
func EMA(data []float64, period int) float64 {
	series := EMASeries(data, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// EMASeries returns the EMA value at every index of data.
// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier)).
func EMASeries(data []float64, period int) []float64 {
	if len(data) == 0 {
		return nil
	}
	if period < 1 {
		period = 1
	}
	k := 2.0 / float64(period+1)

	out := make([]float64, len(data))
	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = data[i]*k + out[i-1]*(1-k)
	}
	return out
}
