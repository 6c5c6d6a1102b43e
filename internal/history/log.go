// Package history keeps bounded, per-room message streams.
package history

import (
	"sync"

	"github.com/surewhynot/realtime/internal/domain"
)

const (
	DefaultCapacity = 300
	DefaultLimit    = 50
	MaxLimit        = 200
)

// Log is a fixed-capacity ring of messages. Appends are serialized so the
// stored order equals call order; readers share the lock.
type Log struct {
	mu    sync.RWMutex
	buf   []domain.Message
	start int
	size  int
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]domain.Message, capacity)}
}

// Append stores m, evicting the oldest entry when full.
func (l *Log) Append(m domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := len(l.buf)
	if l.size < c {
		l.buf[(l.start+l.size)%c] = m
		l.size++
		return
	}
	l.buf[l.start] = m
	l.start = (l.start + 1) % c
}

// Recent returns up to limit messages, most recent last.
func (l *Log) Recent(limit int) []domain.Message {
	limit = ClampLimit(limit)

	l.mu.RLock()
	defer l.mu.RUnlock()

	n := min(limit, l.size)
	out := make([]domain.Message, n)
	c := len(l.buf)
	first := l.start + l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.buf[(first+i)%c]
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// ClampLimit maps a requested limit into [1, MaxLimit]; zero or negative
// means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
