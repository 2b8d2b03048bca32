package detector

import (
	"fmt"
	"math"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const (
	reversalFastPeriod    = 5
	reversalMinBars       = 30
	reversalMaxConfidence = 0.88
)

// TrendReversal fires on a fast/slow SMA crossover at the newest bar, or on a
// MACD histogram sign flip while RSI is at an extreme. The threshold is the
// overbought RSI level; oversold is its mirror.
type TrendReversal struct {
	cfg Config
}

// NewTrendReversal creates a trend-reversal detector.
func NewTrendReversal(cfg Config) *TrendReversal {
	return &TrendReversal{cfg: cfg.withDefaults(DefaultConfigs()[NameTrendReversal])}
}

func (t *TrendReversal) Name() string           { return NameTrendReversal }
func (t *TrendReversal) Pattern() model.Pattern { return model.PatternTrendReversal }

// Detect implements Detector.
func (t *TrendReversal) Detect(window []model.Bar, _ map[string][]model.Bar) *model.Insight {
	slow := t.cfg.LookbackPeriod
	n := len(window)
	minBars := reversalMinBars
	if slow+1 > minBars {
		minBars = slow + 1
	}
	if n < minBars {
		return nil
	}

	closes := model.Closes(window)
	prev := closes[:n-1]

	slowSMA := indicator.SMA(closes, slow)
	diffNow := indicator.SMA(closes, reversalFastPeriod) - slowSMA
	diffPrev := indicator.SMA(prev, reversalFastPeriod) - indicator.SMA(prev, slow)
	bullCross := diffPrev <= 0 && diffNow > 0
	bearCross := diffPrev >= 0 && diffNow < 0
	cross := bullCross || bearCross

	histNow := indicator.MACD(closes).Histogram
	histPrev := indicator.MACD(prev).Histogram
	flip := (histPrev <= 0 && histNow > 0) || (histPrev >= 0 && histNow < 0)

	rsi := indicator.RSI(closes, indicator.DefaultRSIPeriod)
	overbought := rsi > t.cfg.SensitivityThreshold
	oversold := rsi < 100-t.cfg.SensitivityThreshold
	extreme := overbought || oversold

	if !cross && !(flip && extreme) {
		return nil
	}

	bullish := bullCross
	if !cross {
		bullish = histNow > 0
	}

	confirmations := 0
	confidence := 0.5
	if cross {
		confirmations++
		confidence += 0.15
	}
	if flip {
		confirmations++
		confidence += 0.1
	}
	if extreme {
		confirmations++
		confidence += 0.1
	}
	spread := math.Abs(pctChange(slowSMA, slowSMA+diffNow))
	confidence += math.Min(spread*5, 0.1)

	strength := float64(confirmations) + spread*10
	impact := impactFor(strength, 3, 2, 1.2)

	action := model.ActionExitPosition
	direction := "bearish"
	if bullish {
		action = model.ActionScaleIn
		direction = "bullish"
	}

	reason := fmt.Sprintf("Potential %s trend reversal (%d confirmations, RSI %.1f)", direction, confirmations, rsi)

	return newInsight(t.Pattern(), window, confidence, reversalMaxConfidence, impact, action, reason,
		model.Metadata{
			PriceChange: pctChange(closes[n-1-reversalFastPeriod], closes[n-1]) * 100,
			Timeframe:   fmt.Sprintf("SMA%d/SMA%d", reversalFastPeriod, slow),
		})
}
