package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "room:ABCD:text", "hello", 10*time.Minute))
	require.NoError(t, m.Put(ctx, "forever", "x", 0))

	v, ok, err := m.Get(ctx, "room:ABCD:text")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	now = now.Add(10 * time.Minute)
	_, ok, err = m.Get(ctx, "room:ABCD:text")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemory_DeleteAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = m.Put(ctx, "a", "1", time.Second)
	_ = m.Put(ctx, "b", "2", time.Hour)
	require.NoError(t, m.Delete(ctx, "b"))
	require.NoError(t, m.Delete(ctx, "missing"))

	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, m.Sweep())
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	_, _, err := m.Get(context.Background(), "a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Put(context.Background(), "a", "b", 0), ErrClosed)
}

func TestMemory_Incr(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "rl", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// later increments keep the first expiry
	now = now.Add(time.Minute)
	n, err := m.Incr(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_ = m.Put(ctx, "text", "hello", 0)
	_, err = m.Incr(ctx, "text", 0)
	assert.Error(t, err)
}
