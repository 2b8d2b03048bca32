package indicator

// DefaultRSIPeriod is the classic RSI lookback.
const DefaultRSIPeriod = 14

// RSI computes the Relative Strength Index from the trailing period deltas:
// RSI = 100 - 100/(1 + avgGain/avgLoss).
//
// Returns 50 when there are fewer than period+1 closes and 100 when the
// average loss is exactly 0. The result is always within [0, 100].
func RSI(closes []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	n := len(closes)
	if n < period+1 {
		return 50
	}

	var gain, loss float64
	for i := n - period; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}

	p := float64(period)
	avgGain := gain / p
	avgLoss := loss / p
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// RSISeries evaluates RSI at each of the last n bars of closes, oldest first.
// Each value only sees the closes up to and including its own bar.
func RSISeries(closes []float64, period, n int) []float64 {
	if n > len(closes) {
		n = len(closes)
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	start := len(closes) - n
	for i := 0; i < n; i++ {
		out[i] = RSI(closes[:start+i+1], period)
	}
	return out
}
