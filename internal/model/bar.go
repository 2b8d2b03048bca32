package model

import (
	"encoding/json"
	"errors"
	"math"
)

// Bar is one OHLCV market data point for a single symbol.
// Timestamp is Unix milliseconds. Bars are immutable once appended to a window.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// SymbolBar is a Bar tagged with the symbol it belongs to.
// It is the wire format of the bar feed and the bar history table.
type SymbolBar struct {
	Symbol string `json:"symbol"`
	Bar
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *SymbolBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// Closes extracts close prices in window order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes in window order.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Validate rejects bars that would poison indicator arithmetic: non-finite or
// negative values, a high below the low, or a missing timestamp.
func (b Bar) Validate() error {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.New("non-finite or negative field")
		}
	}
	if b.High < b.Low {
		return errors.New("high below low")
	}
	if b.Timestamp <= 0 {
		return errors.New("missing timestamp")
	}
	return nil
}
