package domain

import (
	"strings"
	"time"
)

const (
	DefaultRoom   = "lobby"
	maxRoomLen    = 32
	maxNameLen    = 32
	guestIDPrefix = 6
)

// Identity is a stable per-session actor. It is never deleted; presence
// expiry only makes it stale.
type Identity struct {
	ID           string    `json:"uuid"`
	DisplayName  string    `json:"displayName"`
	Room         string    `json:"room"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
	CreatedAt    time.Time `json:"createdAt"`
	XPTotal      int       `json:"xpTotal"`
	DailyXP      int       `json:"dailyXp"`
	LastLoginDay string    `json:"lastLoginDay,omitempty"`
	SolvedDay    string    `json:"solvedDay,omitempty"`
}

// NewIdentity builds a guest identity for id.
func NewIdentity(id string, now time.Time) Identity {
	short := id
	if len(short) > guestIDPrefix {
		short = short[:guestIDPrefix]
	}
	return Identity{
		ID:          id,
		DisplayName: "guest-" + short,
		Room:        DefaultRoom,
		CreatedAt:   now,
	}
}

// SafeRoom trims and bounds a room name; empty becomes the lobby.
func SafeRoom(room string) string {
	r := truncateRunes(strings.TrimSpace(room), maxRoomLen)
	r = strings.TrimSpace(r)
	if r == "" {
		return DefaultRoom
	}
	return r
}

// SafeName trims and bounds a display name; it may return "".
func SafeName(name string) string {
	return strings.TrimSpace(truncateRunes(strings.TrimSpace(name), maxNameLen))
}

// DayKey is the UTC calendar day, YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
