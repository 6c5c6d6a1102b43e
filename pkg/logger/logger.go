// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu  sync.RWMutex
	def *slog.Logger
)

// Init builds the handler for cfg, installs it as slog's default and returns it.
func Init(cfg Config) *slog.Logger {
	return InitWriter(cfg, os.Stdout)
}

// InitWriter is Init with an explicit sink.
func InitWriter(cfg Config, w io.Writer) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "app"
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)

	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg, w)
	default:
		h = newStdHandler(cfg, w)
	}

	l := slog.New(h.WithAttrs(commonAttrs(cfg)))
	slog.SetDefault(l)

	mu.Lock()
	def = l
	mu.Unlock()

	return l
}

// L returns the configured logger, initialising a dev default on first use.
func L() *slog.Logger {
	mu.RLock()
	l := def
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(Config{})
}
