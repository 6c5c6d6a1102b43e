package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Envelope is the outbound frame shape for typed events.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	TS      int64  `json:"ts"`
}

// Broadcaster fans frames out to the connections of a Registry.
type Broadcaster struct {
	reg *Registry
	now func() time.Time
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg, now: time.Now}
}

// WithClock overrides the timestamp source.
func (b *Broadcaster) WithClock(now func() time.Time) *Broadcaster {
	b.now = now
	return b
}

func (b *Broadcaster) Registry() *Registry { return b.reg }

// Encode serializes {type, payload, ts}.
func (b *Broadcaster) Encode(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(Envelope{Type: eventType, Payload: payload, TS: b.now().UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return data, nil
}

// Broadcast encodes once and sends to every open connection in room, or to
// every connection when room is empty. It returns the number of sends queued.
func (b *Broadcaster) Broadcast(eventType string, payload any, room string) (int, error) {
	frame, err := b.Encode(eventType, payload)
	if err != nil {
		return 0, err
	}
	if room == "" {
		return b.deliver(b.reg.All(), frame, nil), nil
	}
	return b.BroadcastRaw(room, frame, nil), nil
}

// BroadcastRaw sends a pre-encoded frame to room, skipping except.
func (b *Broadcaster) BroadcastRaw(room string, frame []byte, except Conn) int {
	return b.deliver(b.reg.ConnectionsInRoom(room), frame, except)
}

// SendTo delivers a typed event to a single connection.
func (b *Broadcaster) SendTo(c Conn, eventType string, payload any) error {
	frame, err := b.Encode(eventType, payload)
	if err != nil {
		return err
	}
	return c.Send(frame)
}

func (b *Broadcaster) deliver(conns []Conn, frame []byte, except Conn) int {
	sent := 0
	for _, c := range conns {
		if c == except || !c.Open() {
			continue
		}
		if err := c.Send(frame); err != nil {
			if !errors.Is(err, ErrConnClosed) {
				slog.Debug("hub send failed", "conn", c.ID(), "err", err)
			}
			continue
		}
		sent++
	}
	return sent
}
