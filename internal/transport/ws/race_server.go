package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/matchmaker"
	"github.com/surewhynot/realtime/internal/race"
	"github.com/surewhynot/realtime/pkg/logger"
)

const (
	reasonRoomClosed = "Room closed or full"
	// policy violation
	closePolicy = 1008
)

// RaceServer serves race rooms, the matchmaking lobby and room codes.
type RaceServer struct {
	upgrader websocket.Upgrader
	rooms    *race.Manager
	lobby    *matchmaker.Matchmaker
	opts     Options
}

func NewRaceServer(rooms *race.Manager, lobby *matchmaker.Matchmaker, opts Options) *RaceServer {
	return &RaceServer{upgrader: newUpgrader(), rooms: rooms, lobby: lobby, opts: opts}
}

func requireUpgrade(w http.ResponseWriter, r *http.Request) bool {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected WebSocket", http.StatusUpgradeRequired)
		return false
	}
	return true
}

// HandleCreateRoom: GET /race/createRoom returns a fresh code as text.
func (s *RaceServer) HandleCreateRoom(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.rooms.NewCode()))
}

// HandleRoom: GET /race/room/{code}
func (s *RaceServer) HandleRoom(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		http.Error(w, "Room ID required", http.StatusBadRequest)
		return
	}
	if !requireUpgrade(w, r) {
		return
	}
	if err := s.rooms.Admit(code); err != nil {
		http.Error(w, reasonRoomClosed, http.StatusForbidden)
		return
	}

	log := logger.FromContext(r.Context()).With("room", code)
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "err", err)
		return
	}
	ctx := r.Context()
	c := newConn(wsConn, s.opts, log)

	room, alias, err := s.rooms.Join(ctx, code, c, r.URL.Query().Get("name"))
	if err != nil {
		if !errors.Is(err, domain.ErrRoomFull) && !errors.Is(err, domain.ErrRoomClosed) {
			log.Warn("race join failed", "err", err)
		}
		// the writer is not running yet, so close synchronously
		_ = wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closePolicy, reasonRoomClosed), time.Now().Add(c.opts.WriteWait))
		_ = c.Close()
		return
	}
	c.log = c.log.With("player", alias)

	c.start(ctx)
	c.readLoop(func(data []byte) {
		guard(c.log, "race", func() { s.handleFrame(ctx, room, c, data) })
	}, nil)

	s.rooms.Leave(room, c)
}

func (s *RaceServer) handleFrame(ctx context.Context, room *race.Room, c *Conn, data []byte) {
	msg, err := ParseRaceInbound(data)
	if err != nil {
		return
	}
	switch m := msg.(type) {
	case StartRace:
		room.Start(c)
	case ReportProgress:
		room.Progress(c, m.CharsTyped)
	case FinishRace:
		room.Finish(ctx, c, m.Time)
	}
}

// HandleLobby: GET /race/lobby queues the socket for matchmaking.
func (s *RaceServer) HandleLobby(w http.ResponseWriter, r *http.Request) {
	if !requireUpgrade(w, r) {
		return
	}
	log := logger.FromContext(r.Context())
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "err", err)
		return
	}
	c := newConn(wsConn, s.opts, log)

	c.start(r.Context())
	s.lobby.Enqueue(c)
	c.readLoop(func([]byte) {}, nil)

	s.lobby.Remove(c)
}
