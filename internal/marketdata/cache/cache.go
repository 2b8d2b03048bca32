// Package cache holds the bounded bar history of every tracked symbol.
package cache

import (
	"sort"
	"sync"

	"trading-insights/internal/model"
	"trading-insights/internal/ringbuf"
)

// Cache maps symbol -> ringbuf.Window. Windows are created lazily on first
// append and never removed. Safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	windows  map[string]*ringbuf.Window
}

// New creates a cache whose windows hold capacity bars each.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = ringbuf.DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		windows:  make(map[string]*ringbuf.Window),
	}
}

// Append pushes bar onto symbol's window. Returns true if an older bar was evicted.
func (c *Cache) Append(symbol string, bar model.Bar) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[symbol]
	if !ok {
		w = ringbuf.New(c.capacity)
		c.windows[symbol] = w
	}
	return w.Push(bar)
}

// Window returns a snapshot of symbol's bars, oldest first.
// Unknown symbols yield an empty window.
func (c *Cache) Window(symbol string) []model.Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w, ok := c.windows[symbol]
	if !ok {
		return nil
	}
	return w.Snapshot()
}

// Len returns the number of bars held for symbol.
func (c *Cache) Len(symbol string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if w, ok := c.windows[symbol]; ok {
		return w.Len()
	}
	return 0
}

// Version returns the append counter of symbol's window (0 if unknown).
func (c *Cache) Version(symbol string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if w, ok := c.windows[symbol]; ok {
		return w.Version()
	}
	return 0
}

// Symbols returns the tracked symbols in sorted order.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.windows))
	for sym := range c.windows {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Peers returns snapshots of every symbol except symbol.
func (c *Cache) Peers(symbol string) map[string][]model.Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]model.Bar, len(c.windows))
	for sym, w := range c.windows {
		if sym == symbol {
			continue
		}
		out[sym] = w.Snapshot()
	}
	return out
}
