package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surewhynot/realtime/internal/history"
	"github.com/surewhynot/realtime/internal/hub"
	"github.com/surewhynot/realtime/internal/kv"
	"github.com/surewhynot/realtime/internal/matchmaker"
	"github.com/surewhynot/realtime/internal/presence"
	"github.com/surewhynot/realtime/internal/race"
	"github.com/surewhynot/realtime/internal/ratelimit"
	"github.com/surewhynot/realtime/internal/security"
	"github.com/surewhynot/realtime/internal/service"
	apihttp "github.com/surewhynot/realtime/internal/transport/http"
	"github.com/surewhynot/realtime/internal/transport/ws"
)

type env struct {
	srv   *httptest.Server
	chat  *service.ChatService
	rooms *race.Manager
}

func newEnv(t *testing.T, rule ratelimit.Rule) *env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tracker := presence.NewTracker()
	chat := service.NewChatService(tracker, history.NewStore(0), hub.NewBroadcaster(hub.NewRegistry()), log)
	store := kv.NewMemory()
	rooms, err := race.NewManager(race.Config{}, store, log)
	require.NoError(t, err)
	signer := security.NewIdentitySigner([]byte("test-secret"), "realtime", time.Hour, 0)

	router := apihttp.NewRouter(apihttp.Deps{
		Handler:  apihttp.NewHandler(chat, service.NewPuzzleService(tracker), signer, nil, rooms),
		Chat:     ws.NewServer(chat, signer, ws.Config{}),
		Race:     ws.NewRaceServer(rooms, matchmaker.New(matchmaker.Config{}, rooms.NewCode, log), ws.Options{}),
		Tokens:   signer,
		Limiter:  ratelimit.NewLimiter(store, log),
		RateRule: rule,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{srv: srv, chat: chat, rooms: rooms}
}

func (e *env) do(t *testing.T, method, path, user string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAPI_HistoryAfterSends(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		resp, _ := e.do(t, http.MethodPost, "/api/chat/send", "u1", map[string]string{"room": "lobby", "message": text})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := e.do(t, http.MethodGet, "/api/chat/history?room=lobby&limit=2", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "d", msgs[0].(map[string]any)["message"])
	assert.Equal(t, "e", msgs[1].(map[string]any)["message"])
}

func TestAPI_SendEmptyMessage(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})
	resp, body := e.do(t, http.MethodPost, "/api/chat/send", "u1", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "message is required", body["error"])
}

func TestAPI_RateLimited(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		resp, _ := e.do(t, http.MethodGet, "/api/leaderboard/global", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := e.do(t, http.MethodGet, "/api/leaderboard/global", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["error"])

	resp, _ = e.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_AnonymousTokenIdentifiesCaller(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})

	resp, body := e.do(t, http.MethodPost, "/api/auth/anonymous", "", map[string]string{"displayName": "Ada", "room": "dev"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]any)
	id := user["uuid"].(string)
	assert.Equal(t, "Ada", user["displayName"])
	assert.Equal(t, "dev", user["room"])
	assert.EqualValues(t, 10, user["xpTotal"])
	token := body["token"].(string)
	require.NotEmpty(t, token)

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/puzzle/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r2.Body.Close()
	assert.Equal(t, id, r2.Header.Get("X-User-ID"))
}

func TestAPI_DisplayNameRequired(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})
	resp, body := e.do(t, http.MethodPost, "/api/auth/display-name", "u1", map[string]string{"displayName": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "displayName is required", body["error"])
}

func TestAPI_PresenceAndLeaderboard(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})
	e.do(t, http.MethodPost, "/api/chat/send", "u1", map[string]string{"room": "dev", "message": "hi"})
	e.do(t, http.MethodPost, "/api/presence/heartbeat", "u2", map[string]string{"room": "dev"})

	_, body := e.do(t, http.MethodGet, "/api/chat/presence?room=dev", "u1", nil)
	assert.EqualValues(t, 2, body["onlineCount"])

	_, body = e.do(t, http.MethodGet, "/api/leaderboard/daily", "", nil)
	rows := body["rows"].([]any)
	require.NotEmpty(t, rows)
	first := rows[0].(map[string]any)
	assert.Equal(t, "u1", first["uuid"])
	assert.EqualValues(t, 11, first["dailyXp"])
}

func TestAPI_ArchiveUnavailableWithoutDatabase(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})
	resp, _ := e.do(t, http.MethodGet, "/api/chat/archive?room=lobby", "u1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRace_CreateRoomAndUpgradeRequired(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})

	resp, err := http.Get(e.srv.URL + "/race/createRoom")
	require.NoError(t, err)
	code, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, strings.TrimSpace(string(code)), 8)

	resp, err = http.Get(e.srv.URL + "/race/room/" + string(code))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.Contains(t, string(body), "Expected WebSocket")
}

func wsURL(e *env, path string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
}

func TestRace_FullRoomRejectedAtUpgrade(t *testing.T) {
	e := newEnv(t, ratelimit.Rule{Limit: 1000})
	for i := 0; i < race.DefaultMaxPlayers; i++ {
		c, _, err := websocket.DefaultDialer.Dial(wsURL(e, "/race/room/full1"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		var seat map[string]any
		require.NoError(t, c.ReadJSON(&seat))
		require.Equal(t, "init", seat["event"])
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(e, "/race/room/full1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
