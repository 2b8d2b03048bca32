package insights

import (
	"sync"
	"time"

	"trading-insights/internal/model"
)

// Store defaults.
const (
	DefaultStoreCapacity = 1000
	DefaultStoreTTL      = 24 * time.Hour
)

type storeEntry struct {
	insight  model.Insight
	seq      uint64 // insertion order, used as a sort tie-breaker
	storedAt time.Time
}

// Store is a bounded, id-indexed ring of insights. When full, Put evicts the
// oldest insight. With a non-zero TTL, insights older than the TTL (by the
// time they were stored) are dropped on every Put and on Sweep.
//
// Thread-safe for concurrent writes and reads.
type Store struct {
	mu   sync.RWMutex
	buf  []storeEntry
	head int // index of the oldest entry
	size int
	byID map[string]int // id -> physical index

	ttl     time.Duration
	now     func() time.Time
	seq     uint64
	evicted uint64
}

// NewStore creates a store holding at most capacity insights.
// A non-positive capacity falls back to DefaultStoreCapacity; ttl 0 disables expiry.
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &Store{
		buf:  make([]storeEntry, capacity),
		byID: make(map[string]int, capacity),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores an insight and returns how many insights were evicted to make
// room or because they expired.
func (s *Store) Put(in model.Insight) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := s.sweep(now)

	if s.size == len(s.buf) {
		s.dropOldest()
		evicted++
	}

	idx := (s.head + s.size) % len(s.buf)
	s.seq++
	s.buf[idx] = storeEntry{insight: in, seq: s.seq, storedAt: now}
	s.byID[in.ID] = idx
	s.size++

	s.evicted += uint64(evicted)
	return evicted
}

// Get returns the insight with the given id.
func (s *Store) Get(id string) (model.Insight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return model.Insight{}, false
	}
	return s.buf[idx].insight, true
}

// snapshot returns copies of all live entries, oldest first.
func (s *Store) snapshot() []storeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storeEntry, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Sweep drops every insight stored before now-TTL. Returns the number dropped.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sweep(now)
	s.evicted += uint64(n)
	return n
}

// sweep relies on entries being in storage order, so expired ones sit at the head.
func (s *Store) sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl)
	n := 0
	for s.size > 0 && s.buf[s.head].storedAt.Before(cutoff) {
		s.dropOldest()
		n++
	}
	return n
}

func (s *Store) dropOldest() {
	old := s.buf[s.head]
	if idx, ok := s.byID[old.insight.ID]; ok && idx == s.head {
		delete(s.byID, old.insight.ID)
	}
	s.buf[s.head] = storeEntry{}
	s.head = (s.head + 1) % len(s.buf)
	s.size--
}

// Clear removes every insight.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.buf {
		s.buf[i] = storeEntry{}
	}
	s.byID = make(map[string]int, len(s.buf))
	s.head = 0
	s.size = 0
}

// Len returns the number of insights held. Always <= Cap.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Cap returns the store capacity.
func (s *Store) Cap() int { return len(s.buf) }

// Evicted returns the total number of insights dropped by capacity or TTL.
func (s *Store) Evicted() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}
