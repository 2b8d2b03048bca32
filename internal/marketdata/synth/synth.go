// Package synth generates seeded synthetic OHLCV bars for demos, backtests
// and reproducible test fixtures. Symbols share a common market factor so
// cross-asset correlation is observable, and each symbol switches between
// drift regimes and occasional volume spikes so every detector has
// something to find.
package synth

import (
	"context"
	"math"
	"math/rand"
	"time"

	"trading-insights/internal/model"
)

// Config controls the generator. Zero values take defaults.
type Config struct {
	Symbols    []string
	Seed       int64
	StartMs    int64   // timestamp of the first bar (default 2024-01-01T00:00Z)
	IntervalMs int64   // bar spacing (default 60000)
	StartPrice float64 // default 100
	BaseVolume float64 // default 1000
}

func (c *Config) defaults() {
	if c.StartMs == 0 {
		c.StartMs = 1704067200000
	}
	if c.IntervalMs <= 0 {
		c.IntervalMs = 60_000
	}
	if c.StartPrice <= 0 {
		c.StartPrice = 100
	}
	if c.BaseVolume <= 0 {
		c.BaseVolume = 1000
	}
}

type walk struct {
	price float64
	drift float64
	left  int // bars remaining in the current regime
	beta  float64
}

// Generator produces one bar per symbol per step. Same seed, same bars.
// Not goroutine-safe.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	walks []*walk
	ts    int64
}

// New builds a generator for cfg.Symbols.
func New(cfg Config) *Generator {
	cfg.defaults()
	g := &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), ts: cfg.StartMs}
	for range cfg.Symbols {
		g.walks = append(g.walks, &walk{price: cfg.StartPrice, beta: 0.5 + g.rng.Float64()})
	}
	return g
}

// Next advances one step and returns a bar for every symbol, in config order.
func (g *Generator) Next() []model.SymbolBar {
	market := g.rng.NormFloat64() * 0.004
	out := make([]model.SymbolBar, len(g.walks))
	for i, w := range g.walks {
		out[i] = model.SymbolBar{Symbol: g.cfg.Symbols[i], Bar: g.step(w, market)}
	}
	g.ts += g.cfg.IntervalMs
	return out
}

func (g *Generator) step(w *walk, market float64) model.Bar {
	if w.left <= 0 {
		// New regime: mostly quiet, sometimes a strong trend.
		w.left = 10 + g.rng.Intn(40)
		w.drift = 0
		if g.rng.Float64() < 0.35 {
			w.drift = (g.rng.Float64()*2 - 1) * 0.01
		}
	}
	w.left--

	noise := g.rng.NormFloat64() * 0.003
	ret := w.drift + w.beta*market + noise
	open := w.price
	closePx := math.Max(open*(1+ret), 0.01)
	wick := math.Abs(g.rng.NormFloat64()) * 0.002
	high := math.Max(open, closePx) * (1 + wick)
	low := math.Min(open, closePx) * (1 - wick)

	vol := g.cfg.BaseVolume * (0.8 + 0.4*g.rng.Float64())
	if w.drift != 0 {
		vol *= 1.5
	}
	if g.rng.Float64() < 0.03 {
		vol *= 3 + 2*g.rng.Float64()
	}

	w.price = closePx
	return model.Bar{
		Timestamp: g.ts,
		Open:      round(open),
		High:      round(high),
		Low:       round(low),
		Close:     round(closePx),
		Volume:    math.Round(vol),
	}
}

// Series returns n steps of bars for the first symbol. Handy for fixtures.
func (g *Generator) Series(n int) []model.Bar {
	out := make([]model.Bar, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next()[0].Bar)
	}
	return out
}

// Run emits one step every interval into out until ctx is cancelled.
// A full out delays the next step rather than losing bars.
func (g *Generator) Run(ctx context.Context, interval time.Duration, out chan<- model.SymbolBar) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, b := range g.Next() {
				select {
				case out <- b:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func round(v float64) float64 { return math.Round(v*1e4) / 1e4 }
