package indicator

// Standard MACD periods.
const (
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
)

// MACDResult holds the latest MACD line, signal line and histogram.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes EMA(12) - EMA(26) as the MACD line, the signal as EMA(9) of the
// reconstructed MACD-line series, and histogram = MACD - signal.
func MACD(closes []float64) MACDResult {
	if len(closes) == 0 {
		return MACDResult{}
	}
	fast := EMASeries(closes, MACDFastPeriod)
	slow := EMASeries(closes, MACDSlowPeriod)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}

	macd := line[len(line)-1]
	signal := EMA(line, MACDSignalPeriod)
	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}
