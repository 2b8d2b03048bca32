package synth

import (
	"context"
	"testing"
	"time"

	"trading-insights/internal/model"
)

func TestGenerator_Deterministic(t *testing.T) {
	a := New(Config{Symbols: []string{"AAA", "BBB"}, Seed: 7})
	b := New(Config{Symbols: []string{"AAA", "BBB"}, Seed: 7})
	for i := 0; i < 100; i++ {
		x, y := a.Next(), b.Next()
		for j := range x {
			if x[j] != y[j] {
				t.Fatalf("step %d symbol %d: %+v != %+v", i, j, x[j], y[j])
			}
		}
	}
}

func TestGenerator_BarsAreWellFormed(t *testing.T) {
	g := New(Config{Symbols: []string{"AAA", "BBB", "CCC"}, Seed: 42, IntervalMs: 1000})
	var prev int64
	for i := 0; i < 500; i++ {
		step := g.Next()
		if len(step) != 3 {
			t.Fatalf("step %d: %d bars", i, len(step))
		}
		ts := step[0].Timestamp
		if i > 0 && ts != prev+1000 {
			t.Fatalf("step %d: ts %d after %d", i, ts, prev)
		}
		prev = ts
		for _, sb := range step {
			if err := sb.Validate(); err != nil {
				t.Fatalf("step %d %s: %v (%+v)", i, sb.Symbol, err, sb.Bar)
			}
			if sb.Timestamp != ts {
				t.Fatalf("symbols out of step")
			}
		}
	}
}

func TestGenerator_Series(t *testing.T) {
	bars := New(Config{Symbols: []string{"X"}, Seed: 1}).Series(60)
	if len(bars) != 60 {
		t.Fatalf("len = %d", len(bars))
	}
	if bars[0].Open != 100 {
		t.Fatalf("first open = %v, want 100", bars[0].Open)
	}
}

func TestGenerator_Run(t *testing.T) {
	g := New(Config{Symbols: []string{"X", "Y"}, Seed: 3})
	out := make(chan model.SymbolBar, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	g.Run(ctx, 10*time.Millisecond, out)
	if len(out) < 2 {
		t.Fatalf("got %d bars, want at least one step", len(out))
	}
}

func TestGenerator_RunWaitsForRoom(t *testing.T) {
	g := New(Config{Symbols: []string{"X"}, Seed: 3})
	out := make(chan model.SymbolBar)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx, time.Millisecond, out)

	// Read slowly; every step still arrives in order.
	var prev int64
	for i := 0; i < 5; i++ {
		time.Sleep(5 * time.Millisecond)
		b := <-out
		if b.Timestamp <= prev {
			t.Fatalf("bar %d ts %d not after %d", i, b.Timestamp, prev)
		}
		prev = b.Timestamp
	}
}
