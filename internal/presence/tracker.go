// Package presence tracks identities, their last-seen time and XP.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surewhynot/realtime/internal/domain"
)

const (
	DefaultWindow    = 2 * time.Minute
	DailyLoginBonus  = 10
	LeaderboardLimit = 50
	MessageXP        = 1
)

type Option func(*Tracker)

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// Tracker is the identity map. All mutation happens under one lock, so the
// daily bonus check-then-set cannot interleave.
type Tracker struct {
	window time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	users map[string]*domain.Identity
	dirty map[string]struct{}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		window: DefaultWindow,
		now:    time.Now,
		users:  make(map[string]*domain.Identity),
		dirty:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) Window() time.Duration { return t.window }

// Now is the tracker clock.
func (t *Tracker) Now() time.Time { return t.now() }

func (t *Tracker) getLocked(id string) *domain.Identity {
	u, ok := t.users[id]
	if !ok {
		n := domain.NewIdentity(id, t.now())
		u = &n
		t.users[id] = u
		t.dirty[id] = struct{}{}
	}
	return u
}

// Ensure returns the identity for id, creating it when unknown. An empty id
// gets a fresh uuid.
func (t *Tracker) Ensure(id string) domain.Identity {
	if id == "" {
		id = uuid.NewString()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.getLocked(id)
}

func (t *Tracker) Get(id string) (domain.Identity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[id]
	if !ok {
		return domain.Identity{}, false
	}
	return *u, true
}

// MarkSeen refreshes lastSeenAt and grants the daily login bonus at most once
// per identity and UTC day. It reports whether the bonus was granted.
func (t *Tracker) MarkSeen(id string) (domain.Identity, bool) {
	if id == "" {
		id = uuid.NewString()
	}
	now := t.now()
	day := domain.DayKey(now)

	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.getLocked(id)
	u.LastSeenAt = now
	granted := false
	if u.LastLoginDay != day {
		u.LastLoginDay = day
		u.DailyXP = DailyLoginBonus
		u.XPTotal += DailyLoginBonus
		granted = true
	}
	t.dirty[id] = struct{}{}
	return *u, granted
}

// SetRoom moves id to room (normalized) and returns the stored room.
func (t *Tracker) SetRoom(id, room string) string {
	room = domain.SafeRoom(room)
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.getLocked(id)
	u.Room = room
	t.dirty[id] = struct{}{}
	return room
}

func (t *Tracker) SetDisplayName(id, name string) (domain.Identity, error) {
	name = domain.SafeName(name)
	if name == "" {
		return domain.Identity{}, domain.ErrEmptyName
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.getLocked(id)
	u.DisplayName = name
	t.dirty[id] = struct{}{}
	return *u, nil
}

// Award adds xp to both counters.
func (t *Tracker) Award(id string, xp int) domain.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.getLocked(id)
	u.XPTotal += xp
	u.DailyXP += xp
	t.dirty[id] = struct{}{}
	return *u
}

// MarkSolved records the puzzle for day and awards xp once.
func (t *Tracker) MarkSolved(id, day string, xp int) (domain.Identity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.getLocked(id)
	if u.SolvedDay == day {
		return *u, domain.ErrAlreadySolved
	}
	u.SolvedDay = day
	u.XPTotal += xp
	u.DailyXP += xp
	t.dirty[id] = struct{}{}
	return *u, nil
}

func (t *Tracker) online(u *domain.Identity, now time.Time) bool {
	return !u.LastSeenAt.IsZero() && now.Sub(u.LastSeenAt) < t.window
}

// OnlineUsers lists identities seen within the window, optionally in room,
// ordered by display name.
func (t *Tracker) OnlineUsers(room string) []domain.Identity {
	now := t.now()

	t.mu.RLock()
	out := make([]domain.Identity, 0)
	for _, u := range t.users {
		if !t.online(u, now) {
			continue
		}
		if room != "" && u.Room != room {
			continue
		}
		out = append(out, *u)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

// Entry is one leaderboard row.
type Entry struct {
	ID          string `json:"uuid"`
	DisplayName string `json:"displayName"`
	XP          int    `json:"xp"`
}

// DailyLeaderboard ranks today's XP. Identities not seen today count as zero
// and are left out.
func (t *Tracker) DailyLeaderboard() []Entry {
	today := domain.DayKey(t.now())
	return t.rank(func(u *domain.Identity) (int, bool) {
		return u.DailyXP, u.LastLoginDay == today
	})
}

func (t *Tracker) GlobalLeaderboard() []Entry {
	return t.rank(func(u *domain.Identity) (int, bool) {
		return u.XPTotal, true
	})
}

func (t *Tracker) rank(score func(*domain.Identity) (int, bool)) []Entry {
	t.mu.RLock()
	rows := make([]Entry, 0, len(t.users))
	for _, u := range t.users {
		if xp, ok := score(u); ok {
			rows = append(rows, Entry{ID: u.ID, DisplayName: u.DisplayName, XP: xp})
		}
	}
	t.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].XP != rows[j].XP {
			return rows[i].XP > rows[j].XP
		}
		return rows[i].ID < rows[j].ID
	})
	if len(rows) > LeaderboardLimit {
		rows = rows[:LeaderboardLimit]
	}
	return rows
}

// DrainDirty returns identities changed since the previous call.
func (t *Tracker) DrainDirty() []domain.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Identity, 0, len(t.dirty))
	for id := range t.dirty {
		if u, ok := t.users[id]; ok {
			out = append(out, *u)
		}
	}
	t.dirty = make(map[string]struct{})
	return out
}

// MarkDirty queues ids for the next DrainDirty, e.g. after a failed flush.
func (t *Tracker) MarkDirty(ids ...string) {
	t.mu.Lock()
	for _, id := range ids {
		t.dirty[id] = struct{}{}
	}
	t.mu.Unlock()
}

// Restore replaces in-memory identities with persisted ones.
func (t *Tracker) Restore(ids []domain.Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range ids {
		u := ids[i]
		if u.Room == "" {
			u.Room = domain.DefaultRoom
		}
		t.users[u.ID] = &u
	}
}
