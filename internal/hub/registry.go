package hub

import (
	"log/slog"
	"sync"
)

// Scope decides which connections compete for the same identity slot.
type Scope int

const (
	// ScopeIdentity: one active connection per identity (site chat).
	ScopeIdentity Scope = iota
	// ScopeRoom: one active connection per identity per room (race rooms).
	ScopeRoom
)

// SupersedePolicy is applied to the previous connection when an identity
// registers again in the same scope.
type SupersedePolicy int

const (
	// SupersedeDetach drops only the identity lookup; the old connection keeps
	// its room membership until it closes on its own.
	SupersedeDetach SupersedePolicy = iota
	// SupersedeClose unregisters the old connection and closes it.
	SupersedeClose
)

type Option func(*Registry)

func WithScope(s Scope) Option { return func(r *Registry) { r.scope = s } }

func WithSupersede(p SupersedePolicy) Option { return func(r *Registry) { r.policy = p } }

type entry struct {
	identity string
	room     string
}

// Registry is the single owner of connection -> (identity, room) bindings.
type Registry struct {
	mu     sync.RWMutex
	scope  Scope
	policy SupersedePolicy

	conns  map[Conn]entry
	rooms  map[string]map[Conn]struct{} // room -> set of connections
	owners map[string]Conn              // scope key -> latest connection

	hooksMu sync.RWMutex
	onEmpty []func(room string)
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:  make(map[Conn]entry),
		rooms:  make(map[string]map[Conn]struct{}),
		owners: make(map[string]Conn),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnRoomEmpty registers fn to run after a room loses its last connection.
// Hooks run outside the registry lock.
func (r *Registry) OnRoomEmpty(fn func(room string)) {
	r.hooksMu.Lock()
	r.onEmpty = append(r.onEmpty, fn)
	r.hooksMu.Unlock()
}

func (r *Registry) key(identity, room string) string {
	if r.scope == ScopeRoom {
		return room + "\x00" + identity
	}
	return identity
}

// Register binds c to identity and room. Registering an already known c moves
// it. It returns the connection superseded for the same identity slot, if any.
func (r *Registry) Register(c Conn, identity, room string) Conn {
	var (
		emptied    []string
		superseded Conn
	)

	r.mu.Lock()
	if old, ok := r.conns[c]; ok {
		if k := r.key(old.identity, old.room); r.owners[k] == c {
			delete(r.owners, k)
		}
		if old.room != room && r.removeFromRoomLocked(c, old.room) {
			emptied = append(emptied, old.room)
		}
	}

	k := r.key(identity, room)
	if prev, ok := r.owners[k]; ok && prev != c {
		superseded = prev
		if r.policy == SupersedeClose {
			prevEntry := r.conns[prev]
			delete(r.conns, prev)
			switch {
			case prevEntry.room == room:
				delete(r.rooms[room], prev)
			case r.removeFromRoomLocked(prev, prevEntry.room):
				emptied = append(emptied, prevEntry.room)
			}
		}
	}

	r.owners[k] = c
	r.conns[c] = entry{identity: identity, room: room}
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[Conn]struct{})
		r.rooms[room] = set
	}
	set[c] = struct{}{}
	r.mu.Unlock()

	if superseded != nil {
		slog.Debug("hub connection superseded",
			"identity", identity, "room", room, "old", superseded.ID(), "new", c.ID())
		if r.policy == SupersedeClose {
			_ = superseded.Close()
		}
	}
	r.fireEmpty(emptied)

	return superseded
}

// Unregister forgets c. Unknown or already removed connections are ignored.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	e, ok := r.conns[c]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, c)
	if k := r.key(e.identity, e.room); r.owners[k] == c {
		delete(r.owners, k)
	}
	emptied := r.removeFromRoomLocked(c, e.room)
	r.mu.Unlock()

	if emptied {
		r.fireEmpty([]string{e.room})
	}
}

func (r *Registry) removeFromRoomLocked(c Conn, room string) bool {
	set, ok := r.rooms[room]
	if !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.rooms, room)
		return true
	}
	return false
}

func (r *Registry) fireEmpty(rooms []string) {
	if len(rooms) == 0 {
		return
	}
	r.hooksMu.RLock()
	hooks := append([]func(string){}, r.onEmpty...)
	r.hooksMu.RUnlock()

	for _, room := range rooms {
		for _, fn := range hooks {
			fn(room)
		}
	}
}

// ConnectionsInRoom returns a snapshot of the room's connections.
func (r *Registry) ConnectionsInRoom(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[room]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) RoomOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[c]
	return e.room, ok
}

func (r *Registry) IdentityOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[c]
	return e.identity, ok
}

// Lookup returns the current connection owning the identity slot.
func (r *Registry) Lookup(identity, room string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.owners[r.key(identity, room)]
	return c, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) RoomCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
