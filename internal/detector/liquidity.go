package detector

import (
	"fmt"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const (
	liquidityRecentWindow   = 5
	liquidityContractionMin = 0.3
	liquidityMaxConfidence  = 0.85
)

// LiquiditySqueeze fires when both volume and true range of the last 5 bars
// contract against the L bars before them.
type LiquiditySqueeze struct {
	cfg Config
}

// NewLiquiditySqueeze creates a liquidity-squeeze detector.
func NewLiquiditySqueeze(cfg Config) *LiquiditySqueeze {
	return &LiquiditySqueeze{cfg: cfg.withDefaults(DefaultConfigs()[NameLiquiditySqueeze])}
}

func (l *LiquiditySqueeze) Name() string           { return NameLiquiditySqueeze }
func (l *LiquiditySqueeze) Pattern() model.Pattern { return model.PatternLiquiditySqueeze }

// Detect implements Detector.
func (l *LiquiditySqueeze) Detect(window []model.Bar, _ map[string][]model.Bar) *model.Insight {
	lb := l.cfg.LookbackPeriod
	n := len(window)
	if n < lb+liquidityRecentWindow {
		return nil
	}

	split := n - liquidityRecentWindow
	base := split - lb

	vols := model.Volumes(window)
	volumeDrop := 1 - indicator.Ratio(indicator.Mean(vols[split:]), indicator.Mean(vols[base:split]))

	trs := indicator.TrueRanges(window)
	contraction := 1 - indicator.Ratio(indicator.Mean(trs[split:]), indicator.Mean(trs[base:split]))

	if volumeDrop <= l.cfg.SensitivityThreshold || contraction <= liquidityContractionMin {
		return nil
	}

	confidence := 0.5 + volumeDrop*0.3 + contraction*0.2
	squeeze := (volumeDrop + contraction) / 2
	impact := impactFor(squeeze, 0.7, 0.6, 0.5)

	recent := window[split:]
	support := indicator.Min(lows(recent))
	resistance := indicator.Max(highs(recent))

	reason := fmt.Sprintf("Liquidity squeeze: volume down %.0f%% and range down %.0f%%, expect a sharp move out of %.2f-%.2f",
		volumeDrop*100, contraction*100, support, resistance)

	return newInsight(l.Pattern(), window, confidence, liquidityMaxConfidence, impact, model.ActionWaitForConfirmation, reason,
		model.Metadata{
			VolumeChange:    -volumeDrop * 100,
			Volatility:      indicator.Mean(trs[split:]),
			Timeframe:       fmt.Sprintf("%d vs %d periods", liquidityRecentWindow, lb),
			SupportLevel:    support,
			ResistanceLevel: resistance,
		})
}
