package replay

import (
	"context"
	"errors"
	"testing"

	"trading-insights/internal/model"
)

type memReader struct {
	bars []model.SymbolBar
	err  error
}

func (m *memReader) ReadBars(_ context.Context, symbol string, afterMs int64) ([]model.SymbolBar, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.SymbolBar
	for _, b := range m.bars {
		if (symbol == "" || b.Symbol == symbol) && b.Timestamp > afterMs {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memReader) Close() error { return nil }

func history() *memReader {
	return &memReader{bars: []model.SymbolBar{
		{Symbol: "AAPL", Bar: model.Bar{Timestamp: 1000, Close: 1}},
		{Symbol: "MSFT", Bar: model.Bar{Timestamp: 1000, Close: 2}},
		{Symbol: "AAPL", Bar: model.Bar{Timestamp: 2000, Close: 3}},
	}}
}

func TestReplayer_EmitsInOrder(t *testing.T) {
	out := make(chan model.SymbolBar, 10)
	n, err := New(history()).Run(context.Background(), "", 0, 0, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 || len(out) != 3 {
		t.Fatalf("emitted %d (chan %d), want 3", n, len(out))
	}
	first := <-out
	if first.Symbol != "AAPL" || first.Timestamp != 1000 {
		t.Fatalf("first bar = %+v", first)
	}
}

func TestReplayer_FiltersSymbolAndTime(t *testing.T) {
	out := make(chan model.SymbolBar, 10)
	n, err := New(history()).Run(context.Background(), "AAPL", 1000, 0, out)
	if err != nil || n != 1 {
		t.Fatalf("Run = %d, %v; want 1 bar", n, err)
	}
	if b := <-out; b.Timestamp != 2000 {
		t.Fatalf("bar = %+v, want ts 2000", b)
	}
}

func TestReplayer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan model.SymbolBar) // nobody reads
	if _, err := New(history()).Run(ctx, "", 0, 0, out); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReplayer_ReaderError(t *testing.T) {
	boom := errors.New("disk gone")
	if _, err := New(&memReader{err: boom}).Run(context.Background(), "", 0, 0, make(chan model.SymbolBar)); !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
}
