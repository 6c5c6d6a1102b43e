package postgres

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor points at the last message of an archive page. It is bound to the
// room it was issued for.
type Cursor struct {
	Room      string
	CreatedAt time.Time
	ID        string
}

const cursorSep = "\x1f"

// Encode packs c as base64url of room, unix micros and id.
func (c Cursor) Encode() string {
	raw := strings.Join([]string{c.Room, strconv.FormatInt(c.CreatedAt.UnixMicro(), 10), c.ID}, cursorSep)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses s for room. An empty s yields nil; a cursor issued for
// another room is invalid.
func DecodeCursor(s, room string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.Split(string(data), cursorSep)
	if len(parts) != 3 || parts[2] == "" {
		return nil, fmt.Errorf("%w: malformed", ErrInvalidCursor)
	}
	if parts[0] != room {
		return nil, fmt.Errorf("%w: issued for room %q", ErrInvalidCursor, parts[0])
	}
	us, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	return &Cursor{Room: room, CreatedAt: time.UnixMicro(us).UTC(), ID: parts[2]}, nil
}
