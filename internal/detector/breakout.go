package detector

import (
	"fmt"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const (
	breakoutOffset        = 5
	breakoutVolumeWindow  = 3
	breakoutMaxConfidence = 0.9
)

// Breakout fires when the newest close leaves the high/low range of the L bars
// ending 5 bars earlier, with recent volume above the range average by more
// than the threshold ratio.
type Breakout struct {
	cfg Config
}

// NewBreakout creates a range-breakout detector.
func NewBreakout(cfg Config) *Breakout {
	return &Breakout{cfg: cfg.withDefaults(DefaultConfigs()[NameBreakout])}
}

func (b *Breakout) Name() string           { return NameBreakout }
func (b *Breakout) Pattern() model.Pattern { return model.PatternBreakout }

// Detect implements Detector.
func (b *Breakout) Detect(window []model.Bar, _ map[string][]model.Bar) *model.Insight {
	lb := b.cfg.LookbackPeriod
	n := len(window)
	if n < lb+breakoutOffset+1 {
		return nil
	}

	ref := window[n-breakoutOffset-lb : n-breakoutOffset]
	resistance := indicator.Max(highs(ref))
	support := indicator.Min(lows(ref))

	volRatio := indicator.Ratio(
		indicator.Mean(indicator.Tail(model.Volumes(window), breakoutVolumeWindow)),
		indicator.Mean(model.Volumes(ref)),
	)
	if volRatio <= b.cfg.SensitivityThreshold {
		return nil
	}

	last := window[n-1].Close
	var strength float64
	var action model.Action
	var direction string
	switch {
	case last > resistance:
		strength = pctChange(resistance, last) * 100
		action = model.ActionIncreasePosition
		direction = "above resistance"
	case last < support:
		strength = -pctChange(support, last) * 100
		action = model.ActionExitPosition
		direction = "below support"
	default:
		return nil
	}

	confidence := 0.55 + strength*0.2 + (volRatio-1)*0.1
	impact := impactFor(strength, 5, 3, 1)

	reason := fmt.Sprintf("Breakout %s by %.2f%% on %.1fx volume", direction, strength, volRatio)

	md := model.Metadata{
		PriceChange:     strength,
		VolumeChange:    (volRatio - 1) * 100,
		Timeframe:       fmt.Sprintf("%d periods", lb),
		SupportLevel:    support,
		ResistanceLevel: resistance,
	}
	if action == model.ActionExitPosition {
		md.PriceChange = -strength
	}
	return newInsight(b.Pattern(), window, confidence, breakoutMaxConfidence, impact, action, reason, md)
}
