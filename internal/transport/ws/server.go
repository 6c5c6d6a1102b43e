package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/hub"
	"github.com/surewhynot/realtime/internal/presence"
	"github.com/surewhynot/realtime/internal/service"
	"github.com/surewhynot/realtime/pkg/logger"
)

type ChatSvc interface {
	Send(ctx context.Context, authorID, room, text string) (domain.Message, domain.Identity, error)
	AnnouncePresence(room string)
	Tracker() *presence.Tracker
	Broadcaster() *hub.Broadcaster
}

var _ ChatSvc = (*service.ChatService)(nil)

// TokenParser resolves a signed identity token to an identity id.
type TokenParser interface {
	Parse(token string) (string, error)
}

type Config struct {
	Conn Options
	// inbound chat frames per second per connection, and burst
	MessagesPerSecond float64
	Burst             int
}

// Server serves the chat socket: GET /ws?uuid=&room=.
type Server struct {
	upgrader websocket.Upgrader
	chat     ChatSvc
	tokens   TokenParser
	cfg      Config
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

func NewServer(chat ChatSvc, tokens TokenParser, cfg Config) *Server {
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Server{upgrader: newUpgrader(), chat: chat, tokens: tokens, cfg: cfg}
}

func (s *Server) identityFrom(r *http.Request) string {
	q := r.URL.Query()
	if tok := strings.TrimSpace(q.Get("token")); tok != "" && s.tokens != nil {
		if id, err := s.tokens.Parse(tok); err == nil {
			return id
		}
	}
	return strings.TrimSpace(q.Get("uuid"))
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	tracker := s.chat.Tracker()
	reg := s.chat.Broadcaster().Registry()
	log := logger.FromContext(r.Context())

	user := tracker.Ensure(s.identityFrom(r))
	room := tracker.SetRoom(user.ID, r.URL.Query().Get("room"))

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "err", err)
		return
	}

	ctx := r.Context()
	c := newConn(wsConn, s.cfg.Conn, log.With("identity", user.ID))

	user, _ = tracker.MarkSeen(user.ID)
	reg.Register(c, user.ID, room)
	if err := s.chat.Broadcaster().SendTo(c, TypeHello, user); err != nil {
		log.Debug("ws hello failed", "err", err)
	}
	s.chat.AnnouncePresence(room)

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst)
	c.start(ctx)
	c.readLoop(func(data []byte) {
		guard(c.log, "chat", func() { s.handleFrame(ctx, c, user.ID, data, limiter) })
	}, func() { tracker.MarkSeen(user.ID) })

	last, _ := reg.RoomOf(c)
	reg.Unregister(c)
	if last == "" {
		last = room
	}
	s.chat.AnnouncePresence(last)
}

func (s *Server) handleFrame(ctx context.Context, c *Conn, id string, data []byte, limiter *rate.Limiter) {
	msg, err := ParseChatInbound(data)
	if err != nil {
		return
	}
	tracker := s.chat.Tracker()
	reg := s.chat.Broadcaster().Registry()

	switch m := msg.(type) {
	case Heartbeat:
		tracker.MarkSeen(id)

	case JoinRoom:
		prev, _ := reg.RoomOf(c)
		next := tracker.SetRoom(id, m.Room)
		reg.Register(c, id, next)
		tracker.MarkSeen(id)
		_ = s.chat.Broadcaster().SendTo(c, TypeChatJoined, joinedPayload{Room: next})
		if prev != "" && prev != next {
			s.chat.AnnouncePresence(prev)
		}
		s.chat.AnnouncePresence(next)

	case SendChat:
		if !limiter.Allow() {
			c.log.Debug("ws chat throttled")
			return
		}
		room := m.Room
		if room == "" {
			room, _ = reg.RoomOf(c)
		}
		if _, _, err := s.chat.Send(ctx, id, room, m.Message); err != nil && !errors.Is(err, domain.ErrEmptyMessage) {
			c.log.Warn("ws chat send failed", "err", err)
		}
	}
}

// guard keeps a panicking frame handler from taking the process down.
func guard(log *slog.Logger, kind string, fn func()) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("ws frame panic",
				"kind", kind,
				"panic", r,
				"stack", string(debug.Stack()),
				"dur_ms", time.Since(start).Milliseconds())
		}
	}()
	fn()
}
