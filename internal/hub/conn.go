// Package hub tracks live connections per room and fans frames out to them.
package hub

import "errors"

// ErrConnClosed is returned by Send on a connection that is no longer writable.
var ErrConnClosed = errors.New("connection closed")

// Conn is a full-duplex client handle. Send must not block on the network:
// implementations queue the frame and preserve per-connection order.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Open() bool
	Close() error
}
