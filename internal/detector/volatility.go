package detector

import (
	"fmt"
	"math"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const (
	volatilityShortWindow   = 5
	volatilityATRRatioMin   = 1.8
	volatilityMaxConfidence = 0.9
)

// VolatilityCluster fires when short-horizon volatility expands relative to
// the lookback, measured on both return dispersion and average true range.
type VolatilityCluster struct {
	cfg Config
}

// NewVolatilityCluster creates a volatility-cluster detector.
func NewVolatilityCluster(cfg Config) *VolatilityCluster {
	return &VolatilityCluster{cfg: cfg.withDefaults(DefaultConfigs()[NameVolatilityCluster])}
}

func (v *VolatilityCluster) Name() string           { return NameVolatilityCluster }
func (v *VolatilityCluster) Pattern() model.Pattern { return model.PatternVolatilityCluster }

// Detect implements Detector.
func (v *VolatilityCluster) Detect(window []model.Bar, _ map[string][]model.Bar) *model.Insight {
	lb := v.cfg.LookbackPeriod
	n := len(window)
	if n < lb+1 || lb < volatilityShortWindow {
		return nil
	}

	recent := window[n-1-lb:]
	returns := indicator.Returns(model.Closes(recent))
	shortSD := indicator.StdDev(indicator.Tail(returns, volatilityShortWindow))
	stdRatio := indicator.Ratio(shortSD, indicator.StdDev(returns))

	// The first true range of the slice has no previous close; drop it.
	trs := indicator.TrueRanges(recent)[1:]
	shortATR := indicator.Mean(indicator.Tail(trs, volatilityShortWindow))
	atrRatio := indicator.Ratio(shortATR, indicator.Mean(trs))

	stdExcess := stdRatio > v.cfg.SensitivityThreshold
	atrExcess := atrRatio > volatilityATRRatioMin
	if !stdExcess && !atrExcess {
		return nil
	}

	confidence := 0.55 +
		0.2*math.Max(0, stdRatio-v.cfg.SensitivityThreshold) +
		0.15*math.Max(0, atrRatio-volatilityATRRatioMin)
	strength := math.Max(stdRatio, atrRatio)
	impact := impactFor(strength, 3, 2.5, 2)

	reason := fmt.Sprintf("Volatility cluster: short-term volatility %.1fx normal (ATR %.1fx)", stdRatio, atrRatio)

	return newInsight(v.Pattern(), window, confidence, volatilityMaxConfidence, impact, model.ActionReduceRisk, reason,
		model.Metadata{
			PriceChange: pctChange(recent[len(recent)-1-volatilityShortWindow].Close, recent[len(recent)-1].Close) * 100,
			Volatility:  shortSD * 100,
			Timeframe:   fmt.Sprintf("%d vs %d periods", volatilityShortWindow, lb),
		})
}
