package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/surewhynot/realtime/internal/ratelimit"
	httpmw "github.com/surewhynot/realtime/internal/transport/http/middleware"
	"github.com/surewhynot/realtime/internal/transport/ws"
	"github.com/surewhynot/realtime/pkg/httputil"
)

type Deps struct {
	Handler    *Handler
	Chat       *ws.Server
	Race       *ws.RaceServer
	Tokens     httpmw.TokenParser
	Limiter    httpmw.Limiter
	RateRule   ratelimit.Rule
	CORSOrigin []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	origins := d.CORSOrigin
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", httpmw.HeaderUserID},
		ExposedHeaders: []string{httpmw.HeaderUserID, "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))

	h := d.Handler
	r.Route("/api", func(api chi.Router) {
		if d.Limiter != nil {
			api.Use(httpmw.RateLimit(d.Limiter, "api", d.RateRule, "/api/health"))
		}
		api.Use(httpmw.Identity(d.Tokens))
		api.Use(middleware.Timeout(30 * time.Second))

		api.Get("/health", h.Health)

		api.Post("/auth/anonymous", h.Anonymous)
		api.Post("/auth/display-name", h.DisplayName)
		api.Post("/presence/heartbeat", h.Heartbeat)

		api.Route("/chat", func(c chi.Router) {
			c.Post("/room", h.SetRoom)
			c.Post("/send", h.Send)
			c.Get("/history", h.History)
			c.Get("/archive", h.ArchivePage)
			c.Get("/presence", h.Presence)
		})

		api.Get("/leaderboard/daily", h.DailyLeaderboard)
		api.Get("/leaderboard/global", h.GlobalLeaderboard)

		api.Route("/puzzle", func(p chi.Router) {
			p.Get("/today", h.PuzzleToday)
			p.Get("/state", h.PuzzleState)
			p.Post("/submit", h.PuzzleSubmit)
		})
	})

	r.Get("/ws", d.Chat.HandleWS)

	r.Route("/race", func(rc chi.Router) {
		if d.Limiter != nil {
			rc.With(httpmw.RateLimit(d.Limiter, "race", d.RateRule)).Get("/createRoom", d.Race.HandleCreateRoom)
		} else {
			rc.Get("/createRoom", d.Race.HandleCreateRoom)
		}
		rc.Get("/room/{code}", d.Race.HandleRoom)
		rc.Get("/lobby", d.Race.HandleLobby)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
