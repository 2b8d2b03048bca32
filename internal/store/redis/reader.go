package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-insights/internal/model"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader reads previously published insights back from Redis.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
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
	return &Reader{client: client}, nil
}

// ReadRecent returns up to count of the newest insights from InsightStream,
// oldest first. Entries that fail to decode are skipped.
func (r *Reader) ReadRecent(ctx context.Context, count int64) ([]model.Insight, error) {
	msgs, err := r.client.XRevRangeN(ctx, InsightStream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", InsightStream, err)
	}

	out := make([]model.Insight, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		var in model.Insight
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			slog.Warn("skipping undecodable insight", "stream_id", msgs[i].ID, "err", err)
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// Latest returns the newest insight published for symbol.
// Returns (zero, false, nil) if nothing was published or the key expired.
func (r *Reader) Latest(ctx context.Context, symbol string) (model.Insight, bool, error) {
	raw, err := r.client.Get(ctx, LatestKey(symbol)).Result()
	if err == goredis.Nil {
		return model.Insight{}, false, nil
	}
	if err != nil {
		return model.Insight{}, false, fmt.Errorf("get %s: %w", LatestKey(symbol), err)
	}
	var in model.Insight
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return model.Insight{}, false, fmt.Errorf("decode latest insight: %w", err)
	}
	return in, true, nil
}

// Subscribe listens on the insight channels of symbols (all symbols when
// empty) and forwards decoded insights to out until ctx is cancelled.
func (r *Reader) Subscribe(ctx context.Context, symbols []string, out chan<- model.Insight) error {
	var ps *goredis.PubSub
	if len(symbols) == 0 {
		ps = r.client.PSubscribe(ctx, PubSubChannel("*"))
	} else {
		channels := make([]string, len(symbols))
		for i, s := range symbols {
			channels[i] = PubSubChannel(s)
		}
		ps = r.client.Subscribe(ctx, channels...)
	}
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var in model.Insight
			if err := json.Unmarshal([]byte(msg.Payload), &in); err != nil {
				slog.Warn("skipping undecodable insight", "channel", msg.Channel, "err", err)
				continue
			}
			select {
			case out <- in:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
