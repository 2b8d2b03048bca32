package gateway

import "sort"

// replayEntry is one sequenced insight envelope.
type replayEntry struct {
	Seq    int64
	Symbol string
	Data   []byte // envelope JSON as sent to clients
}

// ReplayBuffer keeps the newest envelopes in sequence order so a client can
// be primed on connect or resume after a reconnect with ?since_seq.
// Sequence numbers must be pushed in increasing order.
//
// Not safe for concurrent use; the hub serializes access under its lock.
type ReplayBuffer struct {
	ring []replayEntry
	head int // oldest entry
	size int
}

// NewReplayBuffer creates a buffer holding up to capacity envelopes
// (DefaultReplaySize when capacity <= 0).
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = DefaultReplaySize
	}
	return &ReplayBuffer{ring: make([]replayEntry, capacity)}
}

// Push appends an envelope, dropping the oldest once the buffer is full.
func (rb *ReplayBuffer) Push(seq int64, symbol string, data []byte) {
	e := replayEntry{Seq: seq, Symbol: symbol, Data: data}
	if rb.size < len(rb.ring) {
		rb.ring[(rb.head+rb.size)%len(rb.ring)] = e
		rb.size++
		return
	}
	rb.ring[rb.head] = e
	rb.head = (rb.head + 1) % len(rb.ring)
}

// Since returns the entries with Seq > afterSeq, oldest first.
func (rb *ReplayBuffer) Since(afterSeq int64) []replayEntry {
	start := sort.Search(rb.size, func(i int) bool { return rb.at(i).Seq > afterSeq })
	if start == rb.size {
		return nil
	}
	out := make([]replayEntry, 0, rb.size-start)
	for i := start; i < rb.size; i++ {
		out = append(out, rb.at(i))
	}
	return out
}

// Oldest returns the lowest retained seq, or 0 when empty.
func (rb *ReplayBuffer) Oldest() int64 {
	if rb.size == 0 {
		return 0
	}
	return rb.at(0).Seq
}

func (rb *ReplayBuffer) Len() int { return rb.size }

func (rb *ReplayBuffer) at(i int) replayEntry {
	return rb.ring[(rb.head+i)%len(rb.ring)]
}
