// Package detector provides the stateless pattern analyzers of the insights engine.
//
// A Detector receives a read-only window of bars (oldest first) and returns at
// most one Insight. Detectors never fail on short history: below their minimum
// window length they return nil. Confidence is clamped to a per-detector cap and
// rounded to 2 decimals; impact comes from fixed breakpoints on the detector's
// own signal-strength metric, not from confidence.
package detector

import (
	"fmt"
	"sort"

	"trading-insights/internal/indicator"
	"trading-insights/internal/model"
)

// Detector names, used as keys in detector configuration files.
const (
	NameMomentum           = "momentum"
	NameWhaleAccumulation  = "whale_accumulation"
	NameVolatilityCluster  = "volatility_cluster"
	NameTrendReversal      = "trend_reversal"
	NameLiquiditySqueeze   = "liquidity_squeeze"
	NameCorrelatedMovement = "correlated_movement"
	NameBreakout           = "breakout"
	NameDivergence         = "divergence"
)

// Detector is the interface all pattern analyzers implement.
type Detector interface {
	// Name returns the detector's configuration key (e.g. "momentum").
	Name() string

	// Pattern returns the pattern kind this detector emits.
	Pattern() model.Pattern

	// Detect analyzes window and returns an insight, or nil when nothing fires.
	// peers maps other tracked symbols to their windows; only cross-symbol
	// detectors read it. Implementations must not mutate window or peers.
	Detect(window []model.Bar, peers map[string][]model.Bar) *model.Insight
}

// Config is the per-detector tuning supplied at construction.
type Config struct {
	LookbackPeriod       int     `yaml:"lookback_period" json:"lookback_period"`
	SensitivityThreshold float64 `yaml:"sensitivity_threshold" json:"sensitivity_threshold"`
}

// withDefaults fills zero fields from def.
func (c Config) withDefaults(def Config) Config {
	if c.LookbackPeriod <= 0 {
		c.LookbackPeriod = def.LookbackPeriod
	}
	if c.SensitivityThreshold <= 0 {
		c.SensitivityThreshold = def.SensitivityThreshold
	}
	return c
}

// check rejects tuning a detector cannot interpret. Trend reversal mirrors its
// threshold (t overbought, 100-t oversold), so t must sit above 50.
func (c Config) check(name string) error {
	if c.LookbackPeriod < 2 {
		return fmt.Errorf("detector %s: lookback_period must be at least 2, got %d", name, c.LookbackPeriod)
	}
	t := c.SensitivityThreshold
	switch name {
	case NameTrendReversal:
		if t <= 50 || t >= 100 {
			return fmt.Errorf("detector %s: sensitivity_threshold must be in (50, 100), got %g", name, t)
		}
	case NameCorrelatedMovement, NameLiquiditySqueeze:
		if t >= 1 {
			return fmt.Errorf("detector %s: sensitivity_threshold must be below 1, got %g", name, t)
		}
	case NameDivergence:
		if t >= 100 {
			return fmt.Errorf("detector %s: sensitivity_threshold must be below 100, got %g", name, t)
		}
	}
	return nil
}

// DefaultConfigs returns the built-in tuning of every detector.
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		NameMomentum:           {LookbackPeriod: 10, SensitivityThreshold: 0.02},
		NameWhaleAccumulation:  {LookbackPeriod: 20, SensitivityThreshold: 2.5},
		NameVolatilityCluster:  {LookbackPeriod: 20, SensitivityThreshold: 1.5},
		NameTrendReversal:      {LookbackPeriod: 20, SensitivityThreshold: 70},
		NameLiquiditySqueeze:   {LookbackPeriod: 20, SensitivityThreshold: 0.4},
		NameCorrelatedMovement: {LookbackPeriod: 20, SensitivityThreshold: 0.7},
		NameBreakout:           {LookbackPeriod: 20, SensitivityThreshold: 1.5},
		NameDivergence:         {LookbackPeriod: 10, SensitivityThreshold: 0},
	}
}

// SingleSymbolOrder is the fixed order in which single-symbol detectors run.
var SingleSymbolOrder = []string{
	NameMomentum,
	NameWhaleAccumulation,
	NameVolatilityCluster,
	NameTrendReversal,
	NameLiquiditySqueeze,
	NameBreakout,
	NameDivergence,
}

// New builds the named detector. Zero fields in cfg fall back to defaults.
func New(name string, cfg Config) (Detector, error) {
	def, ok := DefaultConfigs()[name]
	if !ok {
		return nil, fmt.Errorf("unknown detector %q", name)
	}
	cfg = cfg.withDefaults(def)
	if err := cfg.check(name); err != nil {
		return nil, err
	}

	switch name {
	case NameMomentum:
		return NewMomentum(cfg), nil
	case NameWhaleAccumulation:
		return NewWhaleAccumulation(cfg), nil
	case NameVolatilityCluster:
		return NewVolatilityCluster(cfg), nil
	case NameTrendReversal:
		return NewTrendReversal(cfg), nil
	case NameLiquiditySqueeze:
		return NewLiquiditySqueeze(cfg), nil
	case NameCorrelatedMovement:
		return NewCorrelatedMovement(cfg), nil
	case NameBreakout:
		return NewBreakout(cfg), nil
	default:
		return NewDivergence(cfg), nil
	}
}

// Set is the detector set the engine runs: single-symbol detectors in fixed
// order plus the cross-symbol correlation detector.
type Set struct {
	Single      []Detector
	Correlation Detector
}

// NewSet builds the full detector set. overrides may be nil; entries for
// unknown detector names are rejected.
func NewSet(overrides map[string]Config) (*Set, error) {
	for name := range overrides {
		if _, ok := DefaultConfigs()[name]; !ok {
			return nil, fmt.Errorf("unknown detector %q in config", name)
		}
	}

	set := &Set{}
	for _, name := range SingleSymbolOrder {
		d, err := New(name, overrides[name])
		if err != nil {
			return nil, err
		}
		set.Single = append(set.Single, d)
	}
	corr, err := New(NameCorrelatedMovement, overrides[NameCorrelatedMovement])
	if err != nil {
		return nil, err
	}
	set.Correlation = corr
	return set, nil
}

// DefaultSet returns the detector set with built-in tuning.
func DefaultSet() *Set {
	set, _ := NewSet(nil)
	return set
}

// Run is the pure "compute insights" path: it applies each detector to window
// in order and collects every non-nil result.
func Run(window []model.Bar, peers map[string][]model.Bar, detectors ...Detector) []model.Insight {
	var out []model.Insight
	for _, d := range detectors {
		if in := d.Detect(window, peers); in != nil {
			out = append(out, *in)
		}
	}
	return out
}

// ── shared helpers ──

// newInsight finalizes a detection: clamps and rounds confidence and stamps
// the timestamp of the newest bar so detection is reproducible.
func newInsight(p model.Pattern, window []model.Bar, confidence, maxConfidence float64,
	impact model.Impact, action model.Action, reason string, md model.Metadata) *model.Insight {
	return &model.Insight{
		Pattern:         p,
		Confidence:      indicator.Round2(indicator.Clamp(confidence, 0, maxConfidence)),
		Reason:          reason,
		Impact:          impact,
		SuggestedAction: action,
		Timestamp:       window[len(window)-1].Timestamp,
		Metadata:        md,
	}
}

// impactFor maps a strength metric to an impact using descending breakpoints.
func impactFor(strength, critical, high, medium float64) model.Impact {
	switch {
	case strength >= critical:
		return model.ImpactCritical
	case strength >= high:
		return model.ImpactHigh
	case strength >= medium:
		return model.ImpactMedium
	default:
		return model.ImpactLow
	}
}

// pctChange returns (to-from)/from, or 0 when from is 0.
func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from
}

func highs(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lows(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func sortedKeys(m map[string][]model.Bar) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
