package race

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/hub"
	"github.com/surewhynot/realtime/internal/kv"
)

const (
	DefaultMaxPlayers = 4
	DefaultTextTTL    = 10 * time.Minute
)

// Config holds per-room limits.
type Config struct {
	MaxPlayers int
	TextTTL    time.Duration
	// StrictProgress clamps reported progress to the text length and ignores
	// decreases.
	StrictProgress bool
}

func (c Config) withDefaults() Config {
	if c.MaxPlayers <= 0 || c.MaxPlayers > DefaultMaxPlayers {
		c.MaxPlayers = DefaultMaxPlayers
	}
	if c.TextTTL <= 0 {
		c.TextTTL = DefaultTextTTL
	}
	return c
}

// TextKey is the kv key of the cached race text.
func TextKey(code string) string {
	return "room:" + code + ":text"
}

// Snapshot is a read-only view of a room.
type Snapshot struct {
	Code    string `json:"code"`
	Phase   string `json:"phase"`
	Host    string `json:"host"`
	Text    string `json:"text"`
	Players Roster `json:"players"`
	Winner  string `json:"winner,omitempty"`
}

// Room is one race. Every state change happens under mu.
type Room struct {
	code  string
	cfg   Config
	store kv.Store
	reg   *hub.Registry
	bc    *hub.Broadcaster
	log   *slog.Logger

	mu      sync.Mutex
	phase   Phase
	host    string
	text    string
	winner  string
	players Roster
	order   []string
	aliases map[hub.Conn]string
	closed  atomic.Bool
}

func newRoom(code string, cfg Config, store kv.Store, bc *hub.Broadcaster, log *slog.Logger) *Room {
	return &Room{
		code:    code,
		cfg:     cfg.withDefaults(),
		store:   store,
		reg:     bc.Registry(),
		bc:      bc,
		log:     log.With("room", code),
		players: make(Roster),
		aliases: make(map[hub.Conn]string),
	}
}

func (r *Room) Code() string { return r.code }

func (r *Room) admitLocked() error {
	switch {
	case r.closed.Load():
		return domain.ErrRoomClosed
	case r.phase != PhaseLobby:
		return domain.ErrRoomClosed
	case len(r.players) >= r.cfg.MaxPlayers:
		return domain.ErrRoomFull
	}
	return nil
}

// Admit reports whether a join would currently succeed. It does not reserve
// a slot; Join re-checks.
func (r *Room) Admit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admitLocked()
}

func (r *Room) ensureTextLocked(ctx context.Context) {
	if r.text != "" {
		return
	}
	key := TextKey(r.code)
	text, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Warn("race text lookup failed", "err", err)
	}
	if err == nil && ok && text != "" {
		r.text = text
		return
	}

	r.text = RandomSnippet()
	if err := r.store.Put(ctx, key, r.text, r.cfg.TextTTL); err != nil {
		r.log.Warn("race text cache failed", "err", err)
	}
}

// Join seats c under alias, or a generated one when alias is empty or taken.
// The joiner receives init; everyone else receives join.
func (r *Room) Join(ctx context.Context, c hub.Conn, alias string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.admitLocked(); err != nil {
		return "", err
	}
	if _, dup := r.aliases[c]; dup {
		return "", fmt.Errorf("join %s: connection already seated", r.code)
	}
	r.ensureTextLocked(ctx)

	alias = domain.SafeName(alias)
	if _, taken := r.players[alias]; alias == "" || taken {
		alias = pickAlias(r.players)
	}
	r.players[alias] = 0
	r.order = append(r.order, alias)
	r.aliases[c] = alias
	if r.host == "" {
		r.host = alias
	}
	r.reg.Register(c, alias, r.code)

	players := maps.Clone(r.players)
	_ = c.Send(mustEncode(initEvent{
		Event:   "init",
		Text:    r.text,
		You:     alias,
		Host:    r.host,
		Started: r.phase == PhaseStarted,
		Players: players,
	}))
	r.bc.BroadcastRaw(r.code, mustEncode(rosterEvent{
		Event: "join", Player: alias, Host: r.host, Players: players,
	}), c)

	r.log.Debug("race join", "player", alias, "players", len(r.players))
	return alias, nil
}

// Start begins the race when requested by the host in the lobby. Anything
// else is ignored.
func (r *Room) Start(c hub.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	alias, ok := r.aliases[c]
	if !ok || r.phase != PhaseLobby || alias != r.host {
		return false
	}
	r.phase = PhaseStarted
	r.bc.BroadcastRaw(r.code, mustEncode(rosterEvent{
		Event: "start", Host: r.host, Players: maps.Clone(r.players),
	}), nil)
	r.log.Info("race started", "host", r.host, "players", len(r.players))
	return true
}

// Progress records chars typed by c's player and notifies the others.
func (r *Room) Progress(c hub.Conn, chars int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	alias, ok := r.aliases[c]
	if !ok || r.phase != PhaseStarted {
		return false
	}
	if r.cfg.StrictProgress {
		chars = max(0, min(chars, len([]rune(r.text))))
		if chars < r.players[alias] {
			return false
		}
	}
	r.players[alias] = chars
	r.bc.BroadcastRaw(r.code, mustEncode(updateEvent{
		Event: "update", Player: alias, CharsTyped: chars, Players: maps.Clone(r.players),
	}), c)
	return true
}

// Finish declares c's player the winner if nobody finished yet.
func (r *Room) Finish(ctx context.Context, c hub.Conn, elapsed float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	alias, ok := r.aliases[c]
	if !ok || r.phase != PhaseStarted {
		return false
	}
	r.phase = PhaseFinished
	r.winner = alias
	r.bc.BroadcastRaw(r.code, mustEncode(finishEvent{
		Event: "finish", Player: alias, Time: elapsed,
	}), nil)

	if err := r.store.Delete(ctx, TextKey(r.code)); err != nil {
		r.log.Warn("race text delete failed", "err", err)
	}
	r.log.Info("race finished", "winner", alias, "time", elapsed)
	return true
}

// Leave removes c's player. Before the start the host role passes to the
// earliest remaining joiner. It reports whether the room is now empty.
func (r *Room) Leave(c hub.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	alias, ok := r.aliases[c]
	if !ok {
		return len(r.players) == 0
	}
	delete(r.aliases, c)
	delete(r.players, alias)
	for i, a := range r.order {
		if a == alias {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.phase == PhaseLobby && alias == r.host {
		r.host = ""
		if len(r.order) > 0 {
			r.host = r.order[0]
		}
	}
	empty := len(r.players) == 0
	if empty {
		r.closed.Store(true)
	}

	r.bc.BroadcastRaw(r.code, mustEncode(rosterEvent{
		Event: "leave", Player: alias, Host: r.host, Players: maps.Clone(r.players),
	}), c)
	// may fire the empty-room hook, which only touches the manager
	r.reg.Unregister(c)

	r.log.Debug("race leave", "player", alias, "host", r.host, "players", len(r.players))
	return empty
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Code:    r.code,
		Phase:   r.phase.String(),
		Host:    r.host,
		Text:    r.text,
		Players: maps.Clone(r.players),
		Winner:  r.winner,
	}
}

// Phase is the current lifecycle phase.
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// AliasOf returns the alias seated for c.
func (r *Room) AliasOf(c hub.Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.aliases[c]
	return a, ok
}

// Closed reports whether the room lost its last player and awaits teardown.
func (r *Room) Closed() bool { return r.closed.Load() }
