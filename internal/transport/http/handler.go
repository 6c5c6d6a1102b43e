package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/postgres"
	"github.com/surewhynot/realtime/internal/service"
	httpmw "github.com/surewhynot/realtime/internal/transport/http/middleware"
	"github.com/surewhynot/realtime/pkg/errs"
	"github.com/surewhynot/realtime/pkg/httputil"
	"github.com/surewhynot/realtime/pkg/logger"
)

type TokenSigner interface {
	Sign(identityID, displayName string, now time.Time) (string, error)
}

// Archive pages persisted history beyond the in-memory window.
type Archive interface {
	Archive(ctx context.Context, room, after string, limit int) ([]domain.Message, string, error)
}

type RoomCounter interface {
	Count() int
}

type Handler struct {
	chat    *service.ChatService
	puzzles *service.PuzzleService
	signer  TokenSigner
	archive Archive
	races   RoomCounter
}

// NewHandler wires the API. signer, archive and races may be nil.
func NewHandler(chat *service.ChatService, puzzles *service.PuzzleService, signer TokenSigner, archive Archive, races RoomCounter) *Handler {
	return &Handler{chat: chat, puzzles: puzzles, signer: signer, archive: archive, races: races}
}

// authenticate resolves the caller (context id, then bodyID, then a new id)
// and marks it seen.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, bodyID string) domain.Identity {
	id := httpmw.IdentityFromCtx(r.Context())
	if id == "" {
		id = strings.TrimSpace(bodyID)
	}
	u, _ := h.chat.Tracker().MarkSeen(id)
	w.Header().Set(httpmw.HeaderUserID, u.ID)
	return u
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		logger.FromContext(r.Context()).Debug("decode body failed", "err", err)
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "err", err)
	}
	httputil.Error(w, status, err.Error())
}

// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{OK: true, Stats: h.chat.Stats()}
	if h.races != nil {
		resp.RaceRooms = h.races.Count()
	}
	httputil.OK(w, resp)
}

// POST /api/auth/anonymous
func (h *Handler) Anonymous(w http.ResponseWriter, r *http.Request) {
	var req AnonymousRequest
	if !decode(w, r, &req) {
		return
	}
	tracker := h.chat.Tracker()

	id := strings.TrimSpace(req.UUID)
	if id == "" {
		id = httpmw.IdentityFromCtx(r.Context())
	}
	user, _ := tracker.MarkSeen(id)
	w.Header().Set(httpmw.HeaderUserID, user.ID)

	if name := domain.SafeName(req.DisplayName); name != "" {
		user, _ = tracker.SetDisplayName(user.ID, name)
	}
	if strings.TrimSpace(req.Room) != "" {
		tracker.SetRoom(user.ID, req.Room)
		user, _ = tracker.Get(user.ID)
	}

	resp := AnonymousResponse{OK: true, User: user}
	if h.signer != nil {
		tok, err := h.signer.Sign(user.ID, user.DisplayName, tracker.Now())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		resp.Token = tok
	}
	httputil.OK(w, resp)
}

// POST /api/auth/display-name
func (h *Handler) DisplayName(w http.ResponseWriter, r *http.Request) {
	var req DisplayNameRequest
	if !decode(w, r, &req) {
		return
	}
	user := h.authenticate(w, r, req.UUID)

	user, err := h.chat.Tracker().SetDisplayName(user.ID, req.DisplayName)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.OK(w, ProfileResponse{
		OK:           true,
		UUID:         user.ID,
		DisplayName:  user.DisplayName,
		Room:         user.Room,
		XPTotal:      user.XPTotal,
		DailyXP:      user.DailyXP,
		LastLoginDay: user.LastLoginDay,
	})
}

// POST /api/presence/heartbeat
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if !decode(w, r, &req) {
		return
	}
	user := h.authenticate(w, r, req.UUID)
	if strings.TrimSpace(req.Room) != "" {
		user.Room = h.chat.Tracker().SetRoom(user.ID, req.Room)
	}
	httputil.OK(w, HeartbeatResponse{
		OK:           true,
		LastSeenAt:   user.LastSeenAt.UnixMilli(),
		Room:         user.Room,
		XPTotal:      user.XPTotal,
		DailyXP:      user.DailyXP,
		LastLoginDay: user.LastLoginDay,
	})
}

// POST /api/chat/room
func (h *Handler) SetRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if !decode(w, r, &req) {
		return
	}
	user := h.authenticate(w, r, req.UUID)
	room := h.chat.Tracker().SetRoom(user.ID, req.Room)
	httputil.OK(w, RoomResponse{OK: true, Room: room})
}

// POST /api/chat/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !decode(w, r, &req) {
		return
	}
	user := h.authenticate(w, r, req.UUID)

	room := req.Room
	if strings.TrimSpace(room) == "" {
		room = user.Room
	}
	if _, err := domain.NormalizeText(req.Message); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	room = h.chat.Tracker().SetRoom(user.ID, room)

	msg, author, err := h.chat.Send(r.Context(), user.ID, room, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, r, err)
		return
	}
	httputil.OK(w, SendResponse{OK: true, Message: msg, User: author})
}

func queryRoom(r *http.Request, user domain.Identity) string {
	if q := strings.TrimSpace(r.URL.Query().Get("room")); q != "" {
		return domain.SafeRoom(q)
	}
	return domain.SafeRoom(user.Room)
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	if n < 1 {
		return 1
	}
	return n
}

// GET /api/chat/history?room=&limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(w, r, "")
	room := queryRoom(r, user)
	httputil.OK(w, HistoryResponse{Room: room, Messages: h.chat.History(room, queryLimit(r))})
}

// GET /api/chat/archive?room=&cursor=&limit=
func (h *Handler) ArchivePage(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeErr(w, r, errs.ErrUnavailable)
		return
	}
	user := h.authenticate(w, r, "")
	room := queryRoom(r, user)

	msgs, next, err := h.archive.Archive(r.Context(), room, r.URL.Query().Get("cursor"), queryLimit(r))
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			httputil.Error(w, http.StatusBadRequest, "invalid_cursor")
			return
		}
		writeErr(w, r, err)
		return
	}
	httputil.OK(w, HistoryResponse{Room: room, Messages: msgs, Next: next})
}

// GET /api/chat/presence?room=
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(w, r, "")
	room := queryRoom(r, user)
	users := toPresenceUsers(h.chat.Online(room))
	httputil.OK(w, PresenceResponse{Room: room, OnlineCount: len(users), Users: users})
}

// GET /api/leaderboard/daily
func (h *Handler) DailyLeaderboard(w http.ResponseWriter, _ *http.Request) {
	tracker := h.chat.Tracker()
	httputil.OK(w, DailyLeaderboardResponse{
		OK:   true,
		Day:  domain.DayKey(tracker.Now()),
		Rows: toDailyRows(tracker.DailyLeaderboard()),
	})
}

// GET /api/leaderboard/global
func (h *Handler) GlobalLeaderboard(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, GlobalLeaderboardResponse{
		OK:   true,
		Rows: toGlobalRows(h.chat.Tracker().GlobalLeaderboard()),
	})
}

// GET /api/puzzle/today
func (h *Handler) PuzzleToday(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, PuzzleResponse{OK: true, Puzzle: h.puzzles.Today()})
}

// GET /api/puzzle/state
func (h *Handler) PuzzleState(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(w, r, "")
	day, solved := h.puzzles.Solved(user.ID)
	httputil.OK(w, PuzzleStateResponse{OK: true, Day: day, Solved: solved})
}

// POST /api/puzzle/submit
func (h *Handler) PuzzleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	user := h.authenticate(w, r, req.UUID)
	httputil.OK(w, SubmitResponse{OK: true, SubmitResult: h.puzzles.Submit(user.ID, req.Guess)})
}
