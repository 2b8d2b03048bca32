package gateway

import (
	"context"
	"log/slog"
	"sync"

	"trading-insights/internal/model"

	"github.com/gorilla/websocket"
)

// DefaultReplaySize is the number of recent envelopes kept for new clients.
const DefaultReplaySize = 100

// Hub manages WebSocket clients and fans published insights out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	replay *ReplayBuffer

	// Latency tracks insight age (bar time to broadcast) in milliseconds.
	Latency *LatencyTracker

	// OnSlowClient is called when an envelope is dropped for a full client buffer.
	OnSlowClient func()

	Broadcaster *Broadcaster
	log         *slog.Logger
}

// NewHub creates a Hub that primes new clients with up to replaySize envelopes.
func NewHub(replaySize int) *Hub {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	h := &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		Latency: NewLatencyTracker(10000),
		log:     slog.Default().With("component", "ws_hub"),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run broadcasts insights from ch until ctx is cancelled or ch is closed,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context, ch <-chan model.Insight) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcaster.Broadcast(in)
		}
	}
}

// Register attaches an upgraded connection and replays envelopes newer
// than sinceSeq (0 = whole replay ring).
func (h *Hub) Register(conn *websocket.Conn, sinceSeq int64) *Client {
	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		symbols: make(map[string]bool),
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	if oldest := h.replay.Oldest(); sinceSeq > 0 && oldest > sinceSeq+1 {
		h.log.Warn("ws resume gap", "since_seq", sinceSeq, "missed", oldest-sinceSeq-1)
	}
	for _, e := range h.replay.Since(sinceSeq) {
		select {
		case client.send <- e.Data:
		default:
		}
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", "clients", count, "since_seq", sinceSeq)

	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient detaches a client and closes its send queue. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence number of the last broadcast envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}
