// Package hubtest provides an in-memory hub.Conn for tests.
package hubtest

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/surewhynot/realtime/internal/hub"
)

var seq atomic.Int64

// Conn records every frame it is sent.
type Conn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	closes int

	closeCode   int
	closeReason string
}

func NewConn() *Conn {
	return &Conn{id: "test-" + strconv.FormatInt(seq.Add(1), 10)}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hub.ErrConnClosed
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *Conn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closes++
	return nil
}

// CloseWith records the close code and reason, then closes.
func (c *Conn) CloseWith(code int, reason string) error {
	c.mu.Lock()
	c.closeCode, c.closeReason = code, reason
	c.mu.Unlock()
	return c.Close()
}

// CloseStatus returns the code and reason passed to CloseWith.
func (c *Conn) CloseStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// Closes reports how many times Close was called.
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *Conn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// Maps decodes every frame as a JSON object.
func (c *Conn) Maps() []map[string]any {
	frames := c.Frames()
	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the last decoded frame or nil.
func (c *Conn) Last() map[string]any {
	m := c.Maps()
	if len(m) == 0 {
		return nil
	}
	return m[len(m)-1]
}

// Find returns decoded frames whose key equals value.
func (c *Conn) Find(key, value string) []map[string]any {
	var out []map[string]any
	for _, m := range c.Maps() {
		if v, ok := m[key].(string); ok && v == value {
			out = append(out, m)
		}
	}
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
