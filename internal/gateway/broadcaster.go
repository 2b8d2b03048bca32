package gateway

import (
	"strconv"
	"time"

	"trading-insights/internal/model"
)

// Broadcaster builds insight envelopes and sends them to matching clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast sends one insight to every client subscribed to its symbol and
// records it in the replay ring.
func (b *Broadcaster) Broadcast(in model.Insight) {
	now := b.now().UTC()

	// Age of the insight relative to the bar that produced it.
	if b.hub.Latency != nil && in.Timestamp > 0 {
		if age := float64(now.UnixMilli() - in.Timestamp); age >= 0 {
			b.hub.Latency.Record(age)
		}
	}

	data := in.JSON()

	// Sequencing, replay and fan-out happen under one lock so a client
	// registering concurrently sees each envelope exactly once.
	b.hub.mu.Lock()
	defer b.hub.mu.Unlock()
	b.hub.seq++
	buf := buildEnvelope(data, now, b.hub.seq)
	b.hub.replay.Push(b.hub.seq, in.Symbol, buf)

	for client := range b.hub.clients {
		if !client.wants(in.Symbol) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			if b.hub.OnSlowClient != nil {
				b.hub.OnSlowClient()
			}
		}
	}
}

// buildEnvelope hand-crafts {"type":"insight","data":...,"ts":"...","seq":N}.
func buildEnvelope(data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(data)+96)
	buf = append(buf, `{"type":"insight","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}
