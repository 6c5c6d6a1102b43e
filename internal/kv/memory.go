package kv

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type memItem struct {
	value   string
	expires time.Time
}

// Memory is an in-process Store. Expired keys are dropped lazily on read
// and by Sweep.
type Memory struct {
	now func() time.Time

	mu     sync.Mutex
	items  map[string]memItem
	closed bool
}

func NewMemory() *Memory {
	return &Memory{now: time.Now, items: make(map[string]memItem)}
}

// WithClock swaps the expiry clock.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	it, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !it.expires.IsZero() && !m.now().Before(it.expires) {
		delete(m.items, key)
		return "", false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	it := memItem{value: value}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.items, key)
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	now := m.now()
	it, ok := m.items[key]
	if !ok || (!it.expires.IsZero() && !now.Before(it.expires)) {
		it = memItem{value: "0"}
		if ttl > 0 {
			it.expires = now.Add(ttl)
		}
	}
	n, err := strconv.ParseInt(it.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kv incr %s: not an integer", key)
	}
	n++
	it.value = strconv.FormatInt(n, 10)
	m.items[key] = it
	return n, nil
}

// Sweep removes expired keys and returns how many were dropped.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, it := range m.items {
		if !it.expires.IsZero() && !now.Before(it.expires) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.items = nil
	m.mu.Unlock()
	return nil
}
