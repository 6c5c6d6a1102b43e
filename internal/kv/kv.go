// Package kv is the key-value collaborator used for rate-limit counters and
// cached race texts.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("kv store closed")

var (
	_ Counter = (*Memory)(nil)
	_ Counter = (*Redis)(nil)
)

// Store is a string key-value store with per-key expiry. A ttl <= 0 keeps
// the value until it is deleted.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Counter is implemented by stores that increment atomically. The ttl is set
// when the key is created and left alone on later increments.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
