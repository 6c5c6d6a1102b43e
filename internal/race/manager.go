package race

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/hub"
	"github.com/surewhynot/realtime/internal/kv"
)

// Manager owns the live race rooms keyed by code. Rooms are created on first
// join and destroyed when their last player leaves.
type Manager struct {
	cfg     Config
	store   kv.Store
	bc      *hub.Broadcaster
	log     *slog.Logger
	newCode func() string

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(cfg Config, store kv.Store, log *slog.Logger) (*Manager, error) {
	gen, err := NewCodeGenerator()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	reg := hub.NewRegistry(hub.WithScope(hub.ScopeRoom), hub.WithSupersede(hub.SupersedeClose))
	m := &Manager{
		cfg:     cfg.withDefaults(),
		store:   store,
		bc:      hub.NewBroadcaster(reg),
		log:     log.With("component", "race"),
		newCode: gen,
		rooms:   make(map[string]*Room),
	}
	reg.OnRoomEmpty(m.destroy)
	return m, nil
}

// NewCode returns a code not used by any live room.
func (m *Manager) NewCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		code := m.newCode()
		if _, taken := m.rooms[code]; !taken {
			return code
		}
	}
}

func (m *Manager) Lookup(code string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	return r, ok
}

func (m *Manager) getOrCreate(code string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok || r.Closed() {
		r = newRoom(code, m.cfg, m.store, m.bc, m.log)
		m.rooms[code] = r
	}
	return r
}

// Admit is the pre-upgrade gate. Unknown codes are admitted; the room is
// created by Join.
func (m *Manager) Admit(code string) error {
	r, ok := m.Lookup(code)
	if !ok || r.Closed() {
		return nil
	}
	return r.Admit()
}

// Join seats c in room code, creating the room if needed. A room torn down
// between lookup and join is replaced by a fresh one.
func (m *Manager) Join(ctx context.Context, code string, c hub.Conn, alias string) (*Room, string, error) {
	for attempt := 0; ; attempt++ {
		r := m.getOrCreate(code)
		name, err := r.Join(ctx, c, alias)
		if err == nil {
			return r, name, nil
		}
		if errors.Is(err, domain.ErrRoomClosed) && r.Closed() && attempt == 0 {
			continue
		}
		return nil, "", err
	}
}

// Leave removes c from r and tears r down when it becomes empty.
func (m *Manager) Leave(r *Room, c hub.Conn) {
	if r.Leave(c) {
		m.destroy(r.Code())
	}
}

func (m *Manager) destroy(code string) {
	m.mu.Lock()
	r, ok := m.rooms[code]
	if ok && r.Closed() {
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	if ok && r.Closed() {
		m.log.Debug("race room destroyed", "room", code)
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}
