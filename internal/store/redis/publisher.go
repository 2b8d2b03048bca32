package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"trading-insights/internal/model"
)

// batchWriter is satisfied by *Writer.
type batchWriter interface {
	WriteInsights(ctx context.Context, batch []model.Insight) error
}

// Publisher writes insights through a circuit breaker. While the breaker is
// open, insights are buffered locally (oldest dropped beyond maxBuf) and
// flushed ahead of the next successful write.
type Publisher struct {
	writer batchWriter
	cb     *CircuitBreaker
	log    *slog.Logger

	mu     sync.Mutex
	buffer []model.Insight
	maxBuf int

	// Callbacks (optional, for metrics)
	OnBuffer func()
	OnFlush  func(count int)
}

// NewPublisher wraps w with cb. maxBufferSize <= 0 defaults to 10000.
func NewPublisher(w batchWriter, cb *CircuitBreaker, maxBufferSize int) *Publisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	return &Publisher{
		writer: w,
		cb:     cb,
		log:    slog.Default().With("component", "redis-publisher"),
		buffer: make([]model.Insight, 0, 64),
		maxBuf: maxBufferSize,
	}
}

// Publish writes one insight. Failures are buffered, not returned: the
// breaker decides when Redis is retried.
func (p *Publisher) Publish(ctx context.Context, in model.Insight) {
	batch := append(p.takePending(), in)

	err := p.cb.Execute(func() error {
		return p.writer.WriteInsights(ctx, batch)
	})
	if err == nil {
		if len(batch) > 1 {
			p.log.Info("flushed buffered insights", "count", len(batch)-1)
			if p.OnFlush != nil {
				p.OnFlush(len(batch) - 1)
			}
		}
		return
	}

	if !errors.Is(err, ErrCircuitOpen) {
		p.log.Warn("redis write failed, buffering", "count", len(batch), "err", err)
	}
	p.bufferAll(batch)
}

// Run publishes insights from ch until ctx is cancelled or ch closes.
func (p *Publisher) Run(ctx context.Context, ch <-chan model.Insight) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-ch:
			if !ok {
				return
			}
			p.Publish(ctx, in)
		}
	}
}

func (p *Publisher) takePending() []model.Insight {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) == 0 {
		return nil
	}
	out := p.buffer
	p.buffer = make([]model.Insight, 0, 64)
	return out
}

func (p *Publisher) bufferAll(batch []model.Insight) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, in := range batch {
		if len(p.buffer) >= p.maxBuf {
			p.buffer = p.buffer[1:]
		}
		p.buffer = append(p.buffer, in)
		if p.OnBuffer != nil {
			p.OnBuffer()
		}
	}
}

// PendingCount returns the number of buffered insights waiting to be flushed.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}
