package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"trading-insights/internal/model"
)

type fakeWriter struct {
	fail    bool
	batches [][]model.Insight
}

func (f *fakeWriter) WriteInsights(_ context.Context, batch []model.Insight) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.batches = append(f.batches, append([]model.Insight(nil), batch...))
	return nil
}

func insight(id string) model.Insight {
	return model.Insight{ID: id, Symbol: "AAPL", Pattern: model.PatternBreakout}
}

func TestPublisher_PassThrough(t *testing.T) {
	w := &fakeWriter{}
	cb, _ := newTestBreaker(3)
	p := NewPublisher(w, cb, 10)

	p.Publish(context.Background(), insight("a"))
	p.Publish(context.Background(), insight("b"))

	if len(w.batches) != 2 || w.batches[1][0].ID != "b" {
		t.Fatalf("unexpected batches %+v", w.batches)
	}
	if p.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, want 0", p.PendingCount())
	}
}

func TestPublisher_BuffersWhileDownAndFlushesOnRecovery(t *testing.T) {
	w := &fakeWriter{fail: true}
	cb, clk := newTestBreaker(2)
	p := NewPublisher(w, cb, 10)

	flushed := 0
	p.OnFlush = func(n int) { flushed += n }

	for i := 0; i < 4; i++ {
		p.Publish(context.Background(), insight(fmt.Sprintf("down-%d", i)))
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("breaker = %v, want open", cb.CurrentState())
	}
	if p.PendingCount() != 4 {
		t.Fatalf("PendingCount() = %d, want 4", p.PendingCount())
	}

	w.fail = false
	clk.advance(2 * cb.resetTimeout)
	p.Publish(context.Background(), insight("up"))

	if cb.CurrentState() != StateClosed {
		t.Fatalf("breaker = %v, want closed", cb.CurrentState())
	}
	if p.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, want 0 after flush", p.PendingCount())
	}
	if flushed != 4 {
		t.Fatalf("flushed = %d, want 4", flushed)
	}
	last := w.batches[len(w.batches)-1]
	if len(last) != 5 || last[0].ID != "down-0" || last[4].ID != "up" {
		t.Fatalf("flush batch out of order: %+v", last)
	}
}

func TestPublisher_BufferDropsOldest(t *testing.T) {
	w := &fakeWriter{fail: true}
	cb, _ := newTestBreaker(1)
	p := NewPublisher(w, cb, 3)

	for i := 0; i < 5; i++ {
		p.Publish(context.Background(), insight(fmt.Sprintf("i-%d", i)))
	}
	if p.PendingCount() != 3 {
		t.Fatalf("PendingCount() = %d, want 3", p.PendingCount())
	}
	pending := p.takePending()
	if pending[0].ID != "i-2" || pending[2].ID != "i-4" {
		t.Fatalf("buffer kept %s..%s, want i-2..i-4", pending[0].ID, pending[2].ID)
	}
}
