package indicator

// DefaultBollingerPeriod is the classic Bollinger lookback.
const DefaultBollingerPeriod = 20

// Bands holds Bollinger Band levels. Width is the band span relative to the middle.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	Width  float64 `json:"width"`
}

// BollingerBands computes middle = SMA(period) and upper/lower = middle ± 2σ of
// the last period closes. Width = 4σ/middle, 0 when middle is 0.
// Upper >= Middle >= Lower always holds.
func BollingerBands(closes []float64, period int) Bands {
	if period <= 0 {
		period = DefaultBollingerPeriod
	}
	middle := SMA(closes, period)
	sd := StdDev(Tail(closes, period))

	b := Bands{
		Upper:  middle + 2*sd,
		Middle: middle,
		Lower:  middle - 2*sd,
	}
	if middle != 0 {
		b.Width = 4 * sd / middle
	}
	return b
}
