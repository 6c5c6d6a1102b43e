package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`            // ":8080"
	ReadTimeout     time.Duration `yaml:"readTimeout"`     // "15s"
	WriteTimeout    time.Duration `yaml:"writeTimeout"`    // "0s", sockets are long-lived
	IdleTimeout     time.Duration `yaml:"idleTimeout"`     // "60s"
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // "10s"
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // "realtime"
	Version   string `yaml:"version"`   // "0.1.0"
	Backend   string `yaml:"backend"`   // "std"|"zap"
	AddSource bool   `yaml:"addSource"` // true/false
	Debug     bool   `yaml:"debug"`
}

type Presence struct {
	Window time.Duration `yaml:"window"` // "2m"
	// Supersede is applied when an identity opens a second chat socket: detach|close.
	Supersede string `yaml:"supersede"`
}

type History struct {
	Capacity int `yaml:"capacity"` // 300
}

type Race struct {
	MaxPlayers     int           `yaml:"maxPlayers"`     // 4
	TextTTL        time.Duration `yaml:"textTTL"`        // "10m"
	StrictProgress bool          `yaml:"strictProgress"` // false
}

type Matchmaker struct {
	Quorum    int `yaml:"quorum"`    // 2
	GroupSize int `yaml:"groupSize"` // 4
}

type WS struct {
	PingEvery         time.Duration `yaml:"pingEvery"`         // "15s"
	WriteWait         time.Duration `yaml:"writeWait"`         // "5s"
	SendBuffer        int           `yaml:"sendBuffer"`        // 64
	MessagesPerSecond float64       `yaml:"messagesPerSecond"` // 5
	Burst             int           `yaml:"burst"`             // 10
}

type KV struct {
	Backend       string        `yaml:"backend"` // memory|redis
	SweepInterval time.Duration `yaml:"sweepInterval"`
	Redis         Redis         `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Postgres is optional; an empty DSN keeps everything in memory.
type Postgres struct {
	DSN           string        `yaml:"dsn"`
	MaxConns      int32         `yaml:"maxConns"`
	FlushInterval time.Duration `yaml:"flushInterval"` // "2s"
	// MaxPending bounds messages waiting for a flush; the oldest are dropped
	// during a long outage.
	MaxPending int `yaml:"maxPending"` // 10000
}

type Security struct {
	// TokenSecret signs identity tokens. Empty means a random per-process secret.
	TokenSecret string        `yaml:"tokenSecret"`
	TokenTTL    time.Duration `yaml:"tokenTTL"` // "720h"
	Issuer      string        `yaml:"issuer"`
}

type RateLimit struct {
	Limit  int           `yaml:"limit"`  // 60
	Window time.Duration `yaml:"window"` // "60s"
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	HTTP       HTTP       `yaml:"http"`
	Logging    Logging    `yaml:"logging"`
	Presence   Presence   `yaml:"presence"`
	History    History    `yaml:"history"`
	Race       Race       `yaml:"race"`
	Matchmaker Matchmaker `yaml:"matchmaker"`
	WS         WS         `yaml:"ws"`
	KV         KV         `yaml:"kv"`
	Postgres   Postgres   `yaml:"postgres"`
	Security   Security   `yaml:"security"`
	RateLimit  RateLimit  `yaml:"rateLimit"`
	CORS       CORS       `yaml:"cors"`
}

// Load reads CONFIG_PATH (default config/config.yaml), applies defaults and
// validates the result.
// maxRacePlayers is the hard cap on seats in a race room.
const maxRacePlayers = 4

func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = filepath.Join("config", "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "realtime"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	if c.Presence.Window == 0 {
		c.Presence.Window = 2 * time.Minute
	}
	if c.Presence.Supersede == "" {
		c.Presence.Supersede = "detach"
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = 300
	}
	if c.Race.MaxPlayers == 0 {
		c.Race.MaxPlayers = 4
	}
	if c.Race.TextTTL == 0 {
		c.Race.TextTTL = 10 * time.Minute
	}
	if c.Matchmaker.Quorum == 0 {
		c.Matchmaker.Quorum = 2
	}
	if c.Matchmaker.GroupSize == 0 {
		c.Matchmaker.GroupSize = 4
	}

	if c.KV.Backend == "" {
		c.KV.Backend = "memory"
	}
	if c.KV.SweepInterval == 0 {
		c.KV.SweepInterval = time.Minute
	}
	if c.Postgres.FlushInterval == 0 {
		c.Postgres.FlushInterval = 2 * time.Second
	}
	if c.Postgres.MaxPending == 0 {
		c.Postgres.MaxPending = 10000
	}
	if c.Security.TokenTTL == 0 {
		c.Security.TokenTTL = 30 * 24 * time.Hour
	}
	if c.Security.Issuer == "" {
		c.Security.Issuer = c.Logging.Service
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 60
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 60 * time.Second
	}
}

func (c *Config) Validate() error {
	switch c.KV.Backend {
	case "memory":
	case "redis":
		if c.KV.Redis.Addr == "" {
			return errors.New("kv.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("kv.backend: unknown %q", c.KV.Backend)
	}
	switch c.Presence.Supersede {
	case "detach", "close":
	default:
		return fmt.Errorf("presence.supersede: unknown %q", c.Presence.Supersede)
	}
	if c.Race.MaxPlayers < 1 || c.Race.MaxPlayers > maxRacePlayers {
		return fmt.Errorf("race.maxPlayers must be within 1..%d", maxRacePlayers)
	}
	if c.Race.TextTTL < 0 {
		return errors.New("race.textTTL must not be negative")
	}
	if c.Presence.Window < 0 {
		return errors.New("presence.window must not be negative")
	}
	if c.History.Capacity < 0 {
		return errors.New("history.capacity must not be negative")
	}
	if c.KV.SweepInterval < 0 {
		return errors.New("kv.sweepInterval must not be negative")
	}
	if c.Postgres.FlushInterval < 0 {
		return errors.New("postgres.flushInterval must not be negative")
	}
	if c.Postgres.MaxPending < 0 {
		return errors.New("postgres.maxPending must not be negative")
	}
	if c.Matchmaker.Quorum < 2 {
		return errors.New("matchmaker.quorum must be at least 2")
	}
	if c.Matchmaker.GroupSize < c.Matchmaker.Quorum {
		return errors.New("matchmaker.groupSize must not be below quorum")
	}
	if c.Matchmaker.GroupSize > c.Race.MaxPlayers {
		return errors.New("matchmaker.groupSize must fit in a race room")
	}
	if c.RateLimit.Limit < 0 || c.RateLimit.Window < 0 {
		return errors.New("rateLimit values must not be negative")
	}
	if c.Security.TokenSecret != "" && len(c.Security.TokenSecret) < 16 {
		return errors.New("security.tokenSecret must be at least 16 bytes")
	}
	return nil
}
