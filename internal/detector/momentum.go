package detector

import (
	"fmt"
	"math"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const (
	momentumVolumeAvgPeriod = 20
	momentumVolumeRatioMin  = 1.2
	momentumMaxConfidence   = 0.95
)

// Momentum fires when the return over the last L bars differs from the return
// over the L bars before that by more than the threshold, on rising volume.
type Momentum struct {
	cfg Config
}

// NewMomentum creates a momentum-shift detector.
func NewMomentum(cfg Config) *Momentum {
	return &Momentum{cfg: cfg.withDefaults(DefaultConfigs()[NameMomentum])}
}

func (m *Momentum) Name() string           { return NameMomentum }
func (m *Momentum) Pattern() model.Pattern { return model.PatternMomentumShift }

// Detect implements Detector.
func (m *Momentum) Detect(window []model.Bar, _ map[string][]model.Bar) *model.Insight {
	lb := m.cfg.LookbackPeriod
	n := len(window)
	if n < 2*lb+1 {
		return nil
	}

	closes := model.Closes(window)
	vols := model.Volumes(window)

	mid := closes[n-1-lb]
	recent := pctChange(mid, closes[n-1])
	previous := pctChange(closes[n-1-2*lb], mid)
	shift := recent - previous

	recentWindow := lb / 2
	if recentWindow < 1 {
		recentWindow = 1
	}
	volRatio := indicator.Ratio(
		indicator.Mean(indicator.Tail(vols, recentWindow)),
		indicator.SMA(vols, momentumVolumeAvgPeriod),
	)

	if math.Abs(shift) <= m.cfg.SensitivityThreshold || volRatio <= momentumVolumeRatioMin {
		return nil
	}

	confidence := 0.5 + math.Abs(shift)*5 + (volRatio-1)*0.2
	impact := impactFor(math.Abs(shift), 0.10, 0.05, 0.03)

	action := model.ActionIncreasePosition
	direction := "bullish"
	if shift < 0 {
		action = model.ActionReduceRisk
		direction = "bearish"
	}

	reason := fmt.Sprintf("Strong %s momentum shift of %.2f%% over %d periods with %.1fx volume",
		direction, shift*100, lb, volRatio)

	return newInsight(m.Pattern(), window, confidence, momentumMaxConfidence, impact, action, reason,
		model.Metadata{
			PriceChange:  recent * 100,
			VolumeChange: (volRatio - 1) * 100,
			Timeframe:    fmt.Sprintf("%d periods", lb),
		})
}
