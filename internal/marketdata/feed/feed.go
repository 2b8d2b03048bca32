// Package feed is a WebSocket bar-feed client. It connects to an upstream
// server that pushes one JSON bar per message and forwards the decoded bars
// into a channel for the ingest loop.
//
// The expected wire format is model.SymbolBar:
//
//	{"symbol":"AAPL","timestamp":1700000000000,"open":1,"high":2,"low":0.5,"close":1.5,"volume":1000}
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"trading-insights/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the bar feed client.
type Config struct {
	// URL of the bar WebSocket server, e.g. "ws://localhost:9001/bars".
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Client streams bars from a JSON WebSocket feed.
type Client struct {
	cfg Config
	log *slog.Logger

	// Optional hooks.
	OnReconnect func()
	OnConnect   func(connected bool)
}

// New creates a feed client. Returns an error if the URL is not a ws(s) URL.
func New(cfg Config) (*Client, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url: unsupported scheme %q", u.Scheme)
	}
	return &Client{cfg: cfg, log: slog.Default().With("component", "feed")}, nil
}

// Start connects to the feed and streams bars into out.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
func (c *Client) Start(ctx context.Context, out chan<- model.SymbolBar) error {
	delay := c.cfg.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := c.runOnce(ctx, out)
		if c.OnConnect != nil {
			c.OnConnect(false)
		}
		if err == nil {
			return nil
		}

		c.log.Warn("feed disconnected", "err", err, "retry_in", delay)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (c *Client) runOnce(ctx context.Context, out chan<- model.SymbolBar) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	c.log.Info("feed connected", "url", c.cfg.URL)
	if c.OnConnect != nil {
		c.OnConnect(true)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		bar, err := Decode(raw)
		if err != nil {
			c.log.Warn("skipping bar", "err", err)
			continue
		}

		// Wait for room: a dropped bar would leave a gap in the window.
		// Meanwhile the socket stops being read and TCP pushes back.
		select {
		case out <- bar:
		case <-ctx.Done():
			return nil
		}
	}
}

// Decode parses one feed message and rejects bars that cannot be analyzed.
func Decode(raw []byte) (model.SymbolBar, error) {
	var bar model.SymbolBar
	if err := json.Unmarshal(raw, &bar); err != nil {
		return bar, fmt.Errorf("parse bar: %w", err)
	}
	if bar.Symbol == "" {
		return bar, fmt.Errorf("bar without symbol")
	}
	if err := bar.Validate(); err != nil {
		return bar, fmt.Errorf("bar %s: %w", bar.Symbol, err)
	}
	return bar, nil
}
