// Package matchmaker groups waiting lobby connections into race rooms.
package matchmaker

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/surewhynot/realtime/internal/hub"
)

const (
	DefaultQuorum    = 2
	DefaultGroupSize = 4

	// CloseNormal is the websocket close code sent after assignment.
	CloseNormal = 1000
)

// Waiter is a lobby connection that can be closed with a status.
type Waiter interface {
	hub.Conn
	CloseWith(code int, reason string) error
}

type Config struct {
	Quorum    int
	GroupSize int
}

type queuedEvent struct {
	Event   string `json:"event"`
	Waiting int    `json:"waiting"`
}

type assignedEvent struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

// Matchmaker is a FIFO queue. Whenever Quorum connections wait, the oldest
// GroupSize of them are assigned a fresh room code and closed.
type Matchmaker struct {
	cfg     Config
	newCode func() string
	log     *slog.Logger

	mu      sync.Mutex
	waiting []Waiter
}

func New(cfg Config, newCode func() string, log *slog.Logger) *Matchmaker {
	if cfg.Quorum < 2 {
		cfg.Quorum = DefaultQuorum
	}
	if cfg.GroupSize < cfg.Quorum {
		cfg.GroupSize = max(DefaultGroupSize, cfg.Quorum)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Matchmaker{cfg: cfg, newCode: newCode, log: log.With("component", "matchmaker")}
}

type assignment struct {
	room  string
	group []Waiter
}

// Enqueue adds w to the queue, tells it the queue length and runs matching.
func (m *Matchmaker) Enqueue(w Waiter) {
	m.mu.Lock()
	m.waiting = append(m.waiting, w)
	queued, _ := json.Marshal(queuedEvent{Event: "queued", Waiting: len(m.waiting)})
	_ = w.Send(queued)

	var out []assignment
	for len(m.waiting) >= m.cfg.Quorum {
		n := min(m.cfg.GroupSize, len(m.waiting))
		group := make([]Waiter, n)
		copy(group, m.waiting[:n])
		m.waiting = append(m.waiting[:0], m.waiting[n:]...)
		out = append(out, assignment{room: m.newCode(), group: group})
	}
	m.mu.Unlock()

	for _, a := range out {
		m.assign(a)
	}
}

func (m *Matchmaker) assign(a assignment) {
	frame, _ := json.Marshal(assignedEvent{Event: "assigned", Room: a.room})
	for _, w := range a.group {
		if err := w.Send(frame); err != nil {
			m.log.Debug("assigned send failed", "conn", w.ID(), "err", err)
		}
		_ = w.CloseWith(CloseNormal, "assigned")
	}
	m.log.Info("lobby group assigned", "room", a.room, "players", len(a.group))
}

// Remove drops w from the queue if it is still waiting.
func (m *Matchmaker) Remove(w hub.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.waiting {
		if q == w {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			return
		}
	}
}

// Waiting is the current queue length.
func (m *Matchmaker) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}
