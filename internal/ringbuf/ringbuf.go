// Package ringbuf provides a fixed-capacity sliding window of model.Bar.
//
// Push never fails: when the window is full the oldest bar is overwritten
// (FIFO eviction). The window is not goroutine-safe on its own; callers that
// share a window (see marketdata/cache) serialize access.
package ringbuf

import "trading-insights/internal/model"

// DefaultCapacity is the per-symbol bar history kept by the engine.
const DefaultCapacity = 200

// Window is a ring of the most recent bars of one symbol.
type Window struct {
	buf  []model.Bar
	head int // index of the oldest bar
	size int

	version uint64 // total pushes
	evicted uint64 // bars overwritten
}

// New creates a window. A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{buf: make([]model.Bar, capacity)}
}

// Push appends a bar, evicting the oldest one when the window is full.
// Returns true if a bar was evicted.
func (w *Window) Push(b model.Bar) bool {
	w.version++
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = b
		w.size++
		return false
	}
	w.buf[w.head] = b
	w.head = (w.head + 1) % len(w.buf)
	w.evicted++
	return true
}

// Snapshot returns a copy of the window, oldest first.
func (w *Window) Snapshot() []model.Bar {
	out := make([]model.Bar, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Last returns the newest bar.
func (w *Window) Last() (model.Bar, bool) {
	if w.size == 0 {
		return model.Bar{}, false
	}
	return w.buf[(w.head+w.size-1)%len(w.buf)], true
}

// Len returns the number of bars held.
func (w *Window) Len() int { return w.size }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Evicted returns the number of bars dropped by overwrite.
func (w *Window) Evicted() uint64 { return w.evicted }

// Version returns the total number of pushes. It changes on every append,
// so callers can tell whether the window moved since they last looked.
func (w *Window) Version() uint64 { return w.version }
