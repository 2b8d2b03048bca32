package model

import "encoding/json"

// Pattern classifies the market-structure event an Insight describes.
type Pattern string

const (
	PatternMomentumShift      Pattern = "momentum_shift"
	PatternWhaleAccumulation  Pattern = "whale_accumulation"
	PatternVolatilityCluster  Pattern = "volatility_cluster"
	PatternTrendReversal      Pattern = "trend_reversal"
	PatternLiquiditySqueeze   Pattern = "liquidity_squeeze"
	PatternCorrelatedMovement Pattern = "correlated_movement"
	PatternBreakout           Pattern = "breakout"
	PatternDivergence         Pattern = "divergence"
	// PatternSupportResistance is reserved for external producers; no built-in detector emits it.
	PatternSupportResistance Pattern = "support_resistance"
)

// Patterns lists every known pattern in a stable order.
var Patterns = []Pattern{
	PatternMomentumShift,
	PatternWhaleAccumulation,
	PatternVolatilityCluster,
	PatternTrendReversal,
	PatternLiquiditySqueeze,
	PatternCorrelatedMovement,
	PatternBreakout,
	PatternDivergence,
	PatternSupportResistance,
}

// Valid reports whether p is one of the known patterns.
func (p Pattern) Valid() bool {
	for _, known := range Patterns {
		if p == known {
			return true
		}
	}
	return false
}

// Impact is a coarse severity label, assigned independently of confidence.
type Impact string

const (
	ImpactCritical Impact = "Critical"
	ImpactHigh     Impact = "High"
	ImpactMedium   Impact = "Medium"
	ImpactLow      Impact = "Low"
)

// Rank orders impacts: Critical=3 ... Low=0. Unknown values rank -1.
func (i Impact) Rank() int {
	switch i {
	case ImpactCritical:
		return 3
	case ImpactHigh:
		return 2
	case ImpactMedium:
		return 1
	case ImpactLow:
		return 0
	default:
		return -1
	}
}

// ParseImpact maps a case-sensitive label to an Impact. ok is false for unknown labels.
func ParseImpact(s string) (Impact, bool) {
	i := Impact(s)
	return i, i.Rank() >= 0
}

// Action is the suggested reaction to an insight.
type Action string

const (
	ActionIncreasePosition    Action = "Increase position"
	ActionReduceRisk          Action = "Reduce risk"
	ActionScaleIn             Action = "Scale in"
	ActionMonitorClosely      Action = "Monitor closely"
	ActionExitPosition        Action = "Exit position"
	ActionWaitForConfirmation Action = "Wait for confirmation"
	ActionTakeProfit          Action = "Take profit"
	ActionHold                Action = "Hold"
	ActionHedge               Action = "Hedge"
)

// Metadata carries optional detector-specific measurements. Zero values are omitted on the wire.
type Metadata struct {
	PriceChange      float64  `json:"price_change,omitempty"`  // percent
	VolumeChange     float64  `json:"volume_change,omitempty"` // percent
	Volatility       float64  `json:"volatility,omitempty"`
	CorrelatedAssets []string `json:"correlated_assets,omitempty"`
	Timeframe        string   `json:"timeframe,omitempty"`
	SupportLevel     float64  `json:"support_level,omitempty"`
	ResistanceLevel  float64  `json:"resistance_level,omitempty"`
}

// Insight is a single classified, confidence-scored pattern detection.
// Detectors fill everything except ID and Symbol, which the engine assigns.
type Insight struct {
	ID              string   `json:"id"`
	Pattern         Pattern  `json:"pattern"`
	Confidence      float64  `json:"confidence"`
	Reason          string   `json:"reason"`
	Impact          Impact   `json:"impact"`
	SuggestedAction Action   `json:"suggested_action"`
	Symbol          string   `json:"symbol"`
	Timestamp       int64    `json:"timestamp"` // ms, newest bar of the analyzed window
	Metadata        Metadata `json:"metadata"`
}

// JSON returns the JSON-encoded insight (ignoring errors for hot-path usage).
func (in *Insight) JSON() []byte {
	b, _ := json.Marshal(in)
	return b
}
