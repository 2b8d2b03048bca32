package indicator

import "math"

// SMA returns the simple moving average of the last period values.
// With fewer than period values it returns the last available value
// instead of failing; empty input returns 0.
func SMA(data []float64, period int) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	if period <= 0 || n < period {
		return data[n-1]
	}
	return Mean(data[n-period:])
}

// Mean returns the arithmetic mean, or 0 for empty input.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// StdDev returns the population standard deviation (divides by N, not N-1).
// Empty input returns 0.
func StdDev(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	mean := Mean(data)
	ss := 0.0
	for _, v := range data {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}
