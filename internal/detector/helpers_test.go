package detector

import (
	"math"
	"math/rand"
	"testing"

	"trading-insights/internal/model"
)

const barStepMs = 60_000

// barsFrom builds a window with a ±0.5% high/low envelope around each close.
// vols may be nil for a constant 1000.
func barsFrom(closes, vols []float64) []model.Bar {
	out := make([]model.Bar, len(closes))
	for i, c := range closes {
		v := 1000.0
		if vols != nil {
			v = vols[i]
		}
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = model.Bar{
			Timestamp: int64(i+1) * barStepMs,
			Open:      open,
			High:      c * 1.005,
			Low:       c * 0.995,
			Close:     c,
			Volume:    v,
		}
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// randomBars builds a reproducible random-walk window with noisy volume.
func randomBars(seed int64, n int) []model.Bar {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	vols := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= 1 + (rng.Float64()-0.5)*0.06
		closes[i] = price
		vols[i] = 500 + rng.Float64()*2000
		if rng.Intn(15) == 0 {
			vols[i] *= 4
		}
	}
	return barsFrom(closes, vols)
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func mustDetect(t *testing.T, d Detector, window []model.Bar, peers map[string][]model.Bar) *model.Insight {
	t.Helper()
	in := d.Detect(window, peers)
	if in == nil {
		t.Fatalf("%s: expected an insight, got nil", d.Name())
	}
	if in.Pattern != d.Pattern() {
		t.Errorf("%s: pattern = %s, want %s", d.Name(), in.Pattern, d.Pattern())
	}
	if in.Timestamp != window[len(window)-1].Timestamp {
		t.Errorf("%s: timestamp = %d, want newest bar %d", d.Name(), in.Timestamp, window[len(window)-1].Timestamp)
	}
	if in.ID != "" || in.Symbol != "" {
		t.Errorf("%s: detector must leave ID and Symbol to the engine, got %q/%q", d.Name(), in.ID, in.Symbol)
	}
	return in
}
