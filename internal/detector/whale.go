package detector

import (
	"fmt"
	"math"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const (
	whaleSpikeWindow      = 5
	whaleStableMove       = 0.03
	whaleStableVolatility = 0.02
	whaleLargeSpike       = 3.0
	whaleMaxConfidence    = 0.92
)

// WhaleAccumulation fires on a volume spike in the last 5 bars relative to
// the L bars before them. A moderate spike needs a stable price; a spike above
// 3x fires regardless.
type WhaleAccumulation struct {
	cfg Config
}

// NewWhaleAccumulation creates a whale-accumulation detector.
func NewWhaleAccumulation(cfg Config) *WhaleAccumulation {
	return &WhaleAccumulation{cfg: cfg.withDefaults(DefaultConfigs()[NameWhaleAccumulation])}
}

func (w *WhaleAccumulation) Name() string           { return NameWhaleAccumulation }
func (w *WhaleAccumulation) Pattern() model.Pattern { return model.PatternWhaleAccumulation }

// Detect implements Detector.
func (w *WhaleAccumulation) Detect(window []model.Bar, _ map[string][]model.Bar) *model.Insight {
	lb := w.cfg.LookbackPeriod
	n := len(window)
	if n < lb+whaleSpikeWindow {
		return nil
	}

	closes := model.Closes(window)
	vols := model.Volumes(window)

	baseline := indicator.Mean(vols[n-whaleSpikeWindow-lb : n-whaleSpikeWindow])
	spike := indicator.Ratio(indicator.Max(vols[n-whaleSpikeWindow:]), baseline)

	priceMove := math.Abs(pctChange(closes[n-1-whaleSpikeWindow], closes[n-1]))
	volatility := indicator.StdDev(indicator.Returns(closes[n-1-lb:]))
	stable := priceMove < whaleStableMove && volatility < whaleStableVolatility

	if spike <= w.cfg.SensitivityThreshold || (!stable && spike <= whaleLargeSpike) {
		return nil
	}

	confidence := 0.6 + (spike-2)*0.1
	impact := impactFor(spike, 5, 4, 3)

	action := model.ActionMonitorClosely
	reason := fmt.Sprintf("Unusual volume spike of %.1fx average with %.2f%% price move", spike, priceMove*100)
	if stable {
		action = model.ActionScaleIn
		reason = fmt.Sprintf("Large volume spike of %.1fx average while price held within %.2f%%: possible accumulation",
			spike, priceMove*100)
	}

	return newInsight(w.Pattern(), window, confidence, whaleMaxConfidence, impact, action, reason,
		model.Metadata{
			PriceChange:  pctChange(closes[n-1-whaleSpikeWindow], closes[n-1]) * 100,
			VolumeChange: (spike - 1) * 100,
			Volatility:   volatility,
			Timeframe:    fmt.Sprintf("%d periods", whaleSpikeWindow),
		})
}
