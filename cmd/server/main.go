package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/surewhynot/realtime/config"
	"github.com/surewhynot/realtime/internal/history"
	"github.com/surewhynot/realtime/internal/hub"
	"github.com/surewhynot/realtime/internal/kv"
	"github.com/surewhynot/realtime/internal/matchmaker"
	"github.com/surewhynot/realtime/internal/postgres"
	"github.com/surewhynot/realtime/internal/presence"
	"github.com/surewhynot/realtime/internal/race"
	"github.com/surewhynot/realtime/internal/ratelimit"
	"github.com/surewhynot/realtime/internal/security"
	httpserver "github.com/surewhynot/realtime/internal/server/http"
	"github.com/surewhynot/realtime/internal/service"
	transport "github.com/surewhynot/realtime/internal/transport/http"
	"github.com/surewhynot/realtime/internal/transport/ws"
	"github.com/surewhynot/realtime/pkg/logger"
)

func main() {
	// 1) config
	cfg, err := config.Load()
	if err != nil {
		println("failed to load config:", err.Error())
		os.Exit(1)
	}

	// 2) logger
	log := logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	log.Info("starting realtime", "env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("realtime stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	// 3) key-value store
	var store kv.Store
	switch cfg.KV.Backend {
	case "redis":
		r, err := kv.NewRedis(ctx, kv.RedisConfig{
			Addr:     cfg.KV.Redis.Addr,
			Password: cfg.KV.Redis.Password,
			DB:       cfg.KV.Redis.DB,
			Prefix:   cfg.KV.Redis.Prefix,
		})
		if err != nil {
			return err
		}
		store = r
	default:
		mem := kv.NewMemory()
		g.Go(func() error { return mem.Run(ctx, cfg.KV.SweepInterval) })
		store = mem
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	// 4) in-memory state
	tracker := presence.NewTracker(presence.WithWindow(cfg.Presence.Window))
	var historyOpts []history.StoreOption
	if cfg.Postgres.DSN != "" {
		historyOpts = append(historyOpts, history.WithPersistence(cfg.Postgres.MaxPending))
	}
	messages := history.NewStore(cfg.History.Capacity, historyOpts...)

	policy := hub.SupersedeDetach
	if cfg.Presence.Supersede == "close" {
		policy = hub.SupersedeClose
	}
	chatHub := hub.NewRegistry(hub.WithScope(hub.ScopeIdentity), hub.WithSupersede(policy))
	chat := service.NewChatService(tracker, messages, hub.NewBroadcaster(chatHub), log)
	puzzles := service.NewPuzzleService(tracker)

	// 5) optional postgres
	var archive transport.Archive
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		chatRepo := postgres.NewChatRepository(pool)
		archive = chatRepo
		persister := service.NewPersister(tracker, messages, postgres.NewIdentityRepository(pool), chatRepo,
			cfg.Postgres.FlushInterval, cfg.History.Capacity, log)
		if err := persister.Restore(ctx); err != nil {
			log.Warn("restore from postgres failed, starting empty", "err", err)
		}
		g.Go(func() error { return persister.Run(ctx) })
	} else {
		log.Info("postgres not configured, state is in memory only")
	}

	// 6) race rooms and matchmaking
	rooms, err := race.NewManager(race.Config{
		MaxPlayers:     cfg.Race.MaxPlayers,
		TextTTL:        cfg.Race.TextTTL,
		StrictProgress: cfg.Race.StrictProgress,
	}, store, log)
	if err != nil {
		return err
	}
	lobby := matchmaker.New(matchmaker.Config{
		Quorum:    cfg.Matchmaker.Quorum,
		GroupSize: cfg.Matchmaker.GroupSize,
	}, rooms.NewCode, log)

	// 7) identity tokens
	secret := cfg.Security.TokenSecret
	if secret == "" {
		if secret, err = security.RandomSecret(32); err != nil {
			return err
		}
		log.Warn("security.tokenSecret not set, tokens will not survive a restart")
	}
	signer := security.NewIdentitySigner([]byte(secret), cfg.Security.Issuer, cfg.Security.TokenTTL, 30*time.Second)

	// 8) transport
	connOpts := ws.Options{
		PingEvery:  cfg.WS.PingEvery,
		WriteWait:  cfg.WS.WriteWait,
		SendBuffer: cfg.WS.SendBuffer,
	}
	router := transport.NewRouter(transport.Deps{
		Handler: transport.NewHandler(chat, puzzles, signer, archive, rooms),
		Chat: ws.NewServer(chat, signer, ws.Config{
			Conn:              connOpts,
			MessagesPerSecond: cfg.WS.MessagesPerSecond,
			Burst:             cfg.WS.Burst,
		}),
		Race:       ws.NewRaceServer(rooms, lobby, connOpts),
		Tokens:     signer,
		Limiter:    ratelimit.NewLimiter(store, log),
		RateRule:   ratelimit.Rule{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window},
		CORSOrigin: cfg.CORS.AllowedOrigins,
	})

	// 9) server
	srv := httpserver.New(httpserver.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router)
	g.Go(func() error { return srv.Run(ctx) })

	return g.Wait()
}
