// Package redis publishes insights to Redis: one PUBLISH per insight on a
// per-symbol channel plus an XADD to a capped stream for late consumers.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-insights/internal/model"
)

const (
	// InsightStream is the stream every insight is appended to.
	InsightStream = "insights"
	// Approximate cap of InsightStream.
	insightStreamMaxLen = 10000
	defaultLatestTTL    = 24 * time.Hour
)

// PubSubChannel returns the channel insights for symbol are published on.
func PubSubChannel(symbol string) string { return "pub:insight:" + symbol }

// LatestKey holds the newest insight of symbol.
func LatestKey(symbol string) string { return "insight:latest:" + symbol }

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes insights to Redis in pipelined batches.
type Writer struct {
	client *goredis.Client
	log    *slog.Logger

	// OnWrite is called with the duration of every successful pipeline (for metrics).
	OnWrite func(d time.Duration)
}

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log := slog.Default().With("component", "redis")
	log.Info("connected", "addr", cfg.Addr)
	return &Writer{client: client, log: log}, nil
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// WriteInsights writes a batch in one pipeline: XADD + SET latest + PUBLISH
// per insight.
func (w *Writer) WriteInsights(ctx context.Context, batch []model.Insight) error {
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	pipe := w.client.Pipeline()
	for i := range batch {
		in := &batch[i]
		data := string(in.JSON())

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: InsightStream,
			MaxLen: insightStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"id":     in.ID,
				"symbol": in.Symbol,
				"data":   data,
			},
		})
		pipe.Set(ctx, LatestKey(in.Symbol), data, defaultLatestTTL)
		pipe.Publish(ctx, PubSubChannel(in.Symbol), data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis insight pipeline (%d insights): %w", len(batch), err)
	}
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	return nil
}

var _ model.InsightWriter = (*Writer)(nil)

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
