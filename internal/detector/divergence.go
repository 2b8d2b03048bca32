package detector

import (
	"fmt"
	"math"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const divergenceMaxConfidence = 0.85

// Divergence fires when the newest close is a strict new high (low) of the
// last L bars while RSI at that bar stays below (above) its own prior extreme
// in the same bars by more than the threshold gap.
type Divergence struct {
	cfg Config
}

// NewDivergence creates a price/RSI divergence detector.
func NewDivergence(cfg Config) *Divergence {
	return &Divergence{cfg: cfg.withDefaults(DefaultConfigs()[NameDivergence])}
}

func (d *Divergence) Name() string           { return NameDivergence }
func (d *Divergence) Pattern() model.Pattern { return model.PatternDivergence }

// Detect implements Detector.
func (d *Divergence) Detect(window []model.Bar, _ map[string][]model.Bar) *model.Insight {
	lb := d.cfg.LookbackPeriod
	n := len(window)
	if lb < 2 || n < lb+indicator.DefaultRSIPeriod+1 {
		return nil
	}

	closes := model.Closes(window)
	recent := closes[n-lb:]
	rsis := indicator.RSISeries(closes, indicator.DefaultRSIPeriod, lb)

	last := recent[lb-1]
	rsiNow := rsis[lb-1]
	priorCloses := recent[:lb-1]
	priorRSI := rsis[:lb-1]

	var gap float64
	var action model.Action
	var direction string
	switch {
	case last > indicator.Max(priorCloses):
		gap = indicator.Max(priorRSI) - rsiNow
		action = model.ActionReduceRisk
		direction = "Bearish divergence: price made a new high while RSI weakened"
	case last < indicator.Min(priorCloses):
		gap = rsiNow - indicator.Min(priorRSI)
		action = model.ActionScaleIn
		direction = "Bullish divergence: price made a new low while RSI strengthened"
	default:
		return nil
	}
	if gap <= d.cfg.SensitivityThreshold {
		return nil
	}

	confidence := 0.5 + math.Abs(rsiNow-50)/100
	impact := impactFor(gap, 15, 10, 5)
	reason := fmt.Sprintf("%s (RSI %.1f, %.1f points off its extreme)", direction, rsiNow, gap)

	return newInsight(d.Pattern(), window, confidence, divergenceMaxConfidence, impact, action, reason,
		model.Metadata{
			PriceChange: pctChange(recent[0], last) * 100,
			Timeframe:   fmt.Sprintf("%d periods", lb),
		})
}
