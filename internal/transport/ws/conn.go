package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/surewhynot/realtime/internal/hub"
)

var ErrSlowConsumer = errors.New("send queue full")

type Options struct {
	PingEvery  time.Duration
	WriteWait  time.Duration
	SendBuffer int
	ReadLimit  int64
}

func (o Options) withDefaults() Options {
	if o.PingEvery <= 0 {
		o.PingEvery = 15 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	return o
}

type outFrame struct {
	data   []byte
	close  bool
	code   int
	reason string
}

// Conn wraps a websocket with an ordered send queue drained by a single
// writer goroutine. It implements hub.Conn.
type Conn struct {
	ws   *websocket.Conn
	id   string
	opts Options
	log  *slog.Logger

	queue chan outFrame
	done  chan struct{}
	once  sync.Once
	open  atomic.Bool
}

var _ hub.Conn = (*Conn)(nil)

func newConn(ws *websocket.Conn, opts Options, log *slog.Logger) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		ws:    ws,
		id:    uuid.NewString(),
		opts:  opts,
		queue: make(chan outFrame, opts.SendBuffer),
		done:  make(chan struct{}),
	}
	c.log = log.With("conn", c.id)
	c.open.Store(true)
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Open() bool { return c.open.Load() }

// Send queues frame without blocking. A full queue closes the connection.
func (c *Conn) Send(frame []byte) error {
	if !c.open.Load() {
		return hub.ErrConnClosed
	}
	select {
	case c.queue <- outFrame{data: frame}:
		return nil
	case <-c.done:
		return hub.ErrConnClosed
	default:
		c.log.Warn("ws slow consumer, closing")
		_ = c.Close()
		return ErrSlowConsumer
	}
}

// CloseWith flushes queued frames, then sends a close frame with code and
// reason and closes the socket.
func (c *Conn) CloseWith(code int, reason string) error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	select {
	case c.queue <- outFrame{close: true, code: code, reason: reason}:
		return nil
	case <-c.done:
		return nil
	default:
		return c.Close()
	}
}

// Close tears the socket down immediately.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.open.Store(false)
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.queue:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if f.close {
				msg := websocket.FormatCloseMessage(f.code, f.reason)
				_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
				_ = c.Close()
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, f.data); err != nil {
				c.log.Debug("ws write failed", "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-c.done:
			return
		}
	}
}

// start launches the writer. Frames sent before start stay queued.
func (c *Conn) start(ctx context.Context) {
	go c.writePump(ctx)
}

// readLoop reads frames until the peer goes away, then closes c. onPong runs
// on every pong.
func (c *Conn) readLoop(onFrame func([]byte), onPong func()) {
	defer func() { _ = c.Close() }()

	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.opts.PingEvery))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.opts.PingEvery))
		if onPong != nil {
			onPong()
		}
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("ws read failed", "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.opts.PingEvery))
		onFrame(data)
	}
}
