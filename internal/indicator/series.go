package indicator

import (
	"math"

	"trading-insights/internal/model"
)

// Returns computes simple returns r_t = (C_t - C_{t-1}) / C_{t-1}.
// The result has len(closes)-1 entries; a zero previous close yields 0.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		out[i-1] = (closes[i] - prev) / prev
	}
	return out
}

// TrueRanges returns the true range of every bar:
// max(high-low, |high-prevClose|, |low-prevClose|). The first bar uses high-low.
func TrueRanges(bars []model.Bar) []float64 {
	if len(bars) == 0 {
		return nil
	}
	out := make([]float64, len(bars))
	out[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		b := bars[i]
		prevClose := bars[i-1].Close
		tr := b.High - b.Low
		tr = math.Max(tr, math.Abs(b.High-prevClose))
		tr = math.Max(tr, math.Abs(b.Low-prevClose))
		out[i] = tr
	}
	return out
}

// Pearson returns the Pearson correlation of the tail-aligned overlap of x and y.
// Fewer than 2 overlapping points or zero variance on either side yields 0.
// The result is clamped to [-1, 1].
func Pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 2 {
		return 0
	}
	x = x[len(x)-n:]
	y = y[len(y)-n:]

	mx, my := Mean(x), Mean(y)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return Clamp(cov/math.Sqrt(vx*vy), -1, 1)
}
