// Package ratelimit counts requests per (bucket, client) in fixed windows
// stored in the kv collaborator.
package ratelimit

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/surewhynot/realtime/internal/kv"
)

const (
	DefaultLimit  = 60
	DefaultWindow = 60 * time.Second

	stripes = 64
)

// Rule is a request budget per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result describes one Allow decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter counts through kv.Counter when the store has it, so instances
// sharing Redis never lose increments. Plain stores fall back to a
// read-modify-write under striped mutexes, which is exact within one process
// only.
type Limiter struct {
	store   kv.Store
	counter kv.Counter
	now     func() time.Time
	log     *slog.Logger
	locks   [stripes]sync.Mutex
}

func NewLimiter(store kv.Store, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	l := &Limiter{store: store, now: time.Now, log: log}
	if c, ok := store.(kv.Counter); ok {
		l.counter = c
	}
	return l
}

// WithClock overrides the window clock.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.locks[h.Sum32()%stripes]
}

// Allow consumes one request from bucket:client. A kv failure lets the
// request through and is logged.
func (l *Limiter) Allow(ctx context.Context, bucket, client string, rule Rule) Result {
	if rule.Limit <= 0 {
		rule.Limit = DefaultLimit
	}
	if rule.Window <= 0 {
		rule.Window = DefaultWindow
	}

	now := l.now()
	slot := now.UnixNano() / int64(rule.Window)
	resetAt := time.Unix(0, (slot+1)*int64(rule.Window))
	key := fmt.Sprintf("rl:%s:%s:%d", bucket, client, slot)

	if l.counter != nil {
		n, err := l.counter.Incr(ctx, key, resetAt.Sub(now))
		if err != nil {
			l.log.Warn("rate limit increment failed", "bucket", bucket, "err", err)
			return Result{Allowed: true, Remaining: rule.Limit, ResetAt: resetAt, Limit: rule.Limit}
		}
		if n > int64(rule.Limit) {
			return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: rule.Limit}
		}
		return Result{Allowed: true, Remaining: rule.Limit - int(n), ResetAt: resetAt, Limit: rule.Limit}
	}

	mu := l.lock(key)
	mu.Lock()
	defer mu.Unlock()

	count := 0
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.log.Warn("rate limit lookup failed", "bucket", bucket, "err", err)
		return Result{Allowed: true, Remaining: rule.Limit, ResetAt: resetAt, Limit: rule.Limit}
	}
	if ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			count = n
		}
	}

	if count >= rule.Limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: rule.Limit}
	}

	count++
	if err := l.store.Put(ctx, key, strconv.Itoa(count), resetAt.Sub(now)); err != nil {
		l.log.Warn("rate limit update failed", "bucket", bucket, "err", err)
	}
	return Result{Allowed: true, Remaining: rule.Limit - count, ResetAt: resetAt, Limit: rule.Limit}
}
