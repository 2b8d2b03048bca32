// Package bus fans one channel out to several named consumers. A full
// consumer normally loses the event. Consumers registered with
// SubscribeBlocking instead hold the fan-out until they catch up, which
// pushes back on the producer.
package bus

import (
	"context"
	"log/slog"
	"sync"
)

type output[T any] struct {
	name  string
	ch    chan T
	block bool
}

// FanOut broadcasts values from a single input channel to N subscriber
// channels. Used for published insights (hub, Redis, journal, alerts) and
// for ingested bars (engine, bar history).
type FanOut[T any] struct {
	mu      sync.RWMutex
	outputs []output[T]
	bufSize int

	// OnDrop is called when a value is dropped for a slow subscriber.
	OnDrop func(subscriber string)
}

// New creates a FanOut with the given buffer size for subscriber channels.
func New[T any](outputBufferSize int) *FanOut[T] {
	return &FanOut[T]{bufSize: outputBufferSize}
}

// Subscribe registers a named subscriber that drops values when full.
// Call before Run.
func (f *FanOut[T]) Subscribe(name string) <-chan T {
	return f.subscribe(name, false)
}

// SubscribeBlocking registers a named subscriber that never loses a value:
// Run waits for room in its channel. Call before Run.
func (f *FanOut[T]) SubscribeBlocking(name string) <-chan T {
	return f.subscribe(name, true)
}

func (f *FanOut[T]) subscribe(name string, block bool) <-chan T {
	ch := make(chan T, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, output[T]{name: name, ch: ch, block: block})
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to all subscribers. Blocks until ctx
// is cancelled or input is closed, then closes every subscriber channel.
func (f *FanOut[T]) Run(ctx context.Context, input <-chan T) {
	defer func() {
		f.mu.RLock()
		for _, o := range f.outputs {
			close(o.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for _, o := range f.outputs {
				if o.block {
					select {
					case o.ch <- v:
						continue
					case <-ctx.Done():
						f.mu.RUnlock()
						return
					}
				}
				select {
				case o.ch <- v:
				default:
					if f.OnDrop != nil {
						f.OnDrop(o.name)
					} else {
						slog.Warn("subscriber channel full, dropping event", "subscriber", o.name)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat reports the fill level of one subscriber channel.
type ChannelStat struct {
	Name string `json:"name"`
	Len  int    `json:"len"`
	Cap  int    `json:"cap"`
}

// ChannelStats returns the fill level of each subscriber channel.
func (f *FanOut[T]) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, o := range f.outputs {
		stats[i] = ChannelStat{Name: o.name, Len: len(o.ch), Cap: cap(o.ch)}
	}
	return stats
}
