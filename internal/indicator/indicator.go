// Package indicator provides pure technical-analysis primitives over price series.
//
// Every function is deterministic and side-effect free. Expected edge cases
// (empty input, short history, zero denominators) return a defined fallback
// instead of NaN, Inf or an error, so detectors can compose them freely.
package indicator

import "math"

// Ratio returns num/den, or 1 when den is 0 (a degenerate ratio means "no change").
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 1
	}
	return num / den
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Tail returns the last n values of data (all of data if shorter).
func Tail(data []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(data) <= n {
		return data
	}
	return data[len(data)-n:]
}

// Max returns the largest value, or 0 for empty input.
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := data[0]
	for _, v := range data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Min returns the smallest value, or 0 for empty input.
func Min(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := data[0]
	for _, v := range data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
