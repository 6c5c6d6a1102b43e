package history

import (
	"sort"
	"sync"

	"github.com/surewhynot/realtime/internal/domain"
)

// DefaultMaxPending bounds messages waiting for persistence.
const DefaultMaxPending = 10000

type StoreOption func(*Store)

// WithPersistence makes the store remember appends until Drain. At most
// maxPending messages wait; beyond that the oldest are dropped. maxPending
// <= 0 means DefaultMaxPending.
func WithPersistence(maxPending int) StoreOption {
	return func(s *Store) {
		if maxPending <= 0 {
			maxPending = DefaultMaxPending
		}
		s.track = true
		s.maxPending = maxPending
	}
}

// Store owns one Log per room. With persistence enabled it also remembers
// appends not yet persisted.
type Store struct {
	capacity   int
	track      bool
	maxPending int

	mu      sync.RWMutex
	logs    map[string]*Log
	total   int
	dropped int
	pending []domain.Message
}

func NewStore(capacity int, opts ...StoreOption) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{capacity: capacity, logs: make(map[string]*Log)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) log(room string) *Log {
	s.mu.RLock()
	l, ok := s.logs[room]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[room]; !ok {
		l = NewLog(s.capacity)
		s.logs[room] = l
	}
	return l
}

// Append records m in its room stream and, with persistence enabled, queues
// it for the next Drain.
func (s *Store) Append(m domain.Message) {
	s.log(m.Room).Append(m)

	s.mu.Lock()
	s.total++
	if s.track {
		s.pending = append(s.pending, m)
		s.trimPendingLocked()
	}
	s.mu.Unlock()
}

func (s *Store) trimPendingLocked() {
	if over := len(s.pending) - s.maxPending; over > 0 {
		s.dropped += over
		s.pending = append([]domain.Message(nil), s.pending[over:]...)
	}
}

// Recent returns the last limit messages of room, most recent last.
func (s *Store) Recent(room string, limit int) []domain.Message {
	s.mu.RLock()
	l, ok := s.logs[room]
	s.mu.RUnlock()
	if !ok {
		return []domain.Message{}
	}
	return l.Recent(limit)
}

// Total counts messages held across all rooms.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.logs {
		n += l.Len()
	}
	return n
}

// Appended counts every Append since the store was created.
func (s *Store) Appended() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Drain hands over messages appended since the previous Drain.
func (s *Store) Drain() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Requeue puts back messages whose persistence failed, ahead of newer ones.
// The pending bound still applies.
func (s *Store) Requeue(msgs []domain.Message) {
	if len(msgs) == 0 || !s.track {
		return
	}
	s.mu.Lock()
	s.pending = append(append([]domain.Message(nil), msgs...), s.pending...)
	s.trimPendingLocked()
	s.mu.Unlock()
}

// Pending counts messages waiting for Drain.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Dropped counts messages discarded because the pending queue was full.
func (s *Store) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Restore loads previously persisted messages without queueing them again.
func (s *Store) Restore(msgs []domain.Message) {
	sorted := make([]domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	for _, m := range sorted {
		s.log(m.Room).Append(m)
	}
}
