package detector

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

const correlationMaxConfidence = 0.99

// CorrelatedMovement compares the primary symbol's recent returns with every
// peer and fires when at least one |Pearson| exceeds the threshold.
type CorrelatedMovement struct {
	cfg Config
}

// NewCorrelatedMovement creates a cross-symbol correlation detector.
func NewCorrelatedMovement(cfg Config) *CorrelatedMovement {
	return &CorrelatedMovement{cfg: cfg.withDefaults(DefaultConfigs()[NameCorrelatedMovement])}
}

func (c *CorrelatedMovement) Name() string           { return NameCorrelatedMovement }
func (c *CorrelatedMovement) Pattern() model.Pattern { return model.PatternCorrelatedMovement }

type correlatedPeer struct {
	symbol string
	rho    float64
}

// Detect implements Detector. Peers with fewer than L+1 bars are skipped.
func (c *CorrelatedMovement) Detect(window []model.Bar, peers map[string][]model.Bar) *model.Insight {
	lb := c.cfg.LookbackPeriod
	if len(window) < lb+1 || len(peers) == 0 {
		return nil
	}

	primary := indicator.Returns(indicator.Tail(model.Closes(window), lb+1))

	var matches []correlatedPeer
	for _, sym := range sortedKeys(peers) {
		bars := peers[sym]
		if len(bars) < lb+1 {
			continue
		}
		rho := indicator.Pearson(primary, indicator.Returns(indicator.Tail(model.Closes(bars), lb+1)))
		if math.Abs(rho) > c.cfg.SensitivityThreshold {
			matches = append(matches, correlatedPeer{symbol: sym, rho: rho})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return math.Abs(matches[i].rho) > math.Abs(matches[j].rho)
	})
	strongest := math.Abs(matches[0].rho)

	assets := make([]string, len(matches))
	parts := make([]string, len(matches))
	for i, m := range matches {
		assets[i] = m.symbol
		parts[i] = fmt.Sprintf("%s (%.2f)", m.symbol, m.rho)
	}
	sort.Strings(assets)

	reason := fmt.Sprintf("Price moves correlated with %s over %d periods", strings.Join(parts, ", "), lb)

	return newInsight(c.Pattern(), window, strongest, correlationMaxConfidence,
		impactFor(strongest, 0.95, 0.9, 0.8), model.ActionMonitorClosely, reason,
		model.Metadata{
			CorrelatedAssets: assets,
			Timeframe:        fmt.Sprintf("%d periods", lb),
		})
}
