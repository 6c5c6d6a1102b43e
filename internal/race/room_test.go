package race

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/hub/hubtest"
	"github.com/surewhynot/realtime/internal/kv"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	m, err := NewManager(cfg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m, store
}

func join(t *testing.T, m *Manager, code, alias string) (*Room, *hubtest.Conn, string) {
	t.Helper()
	c := hubtest.NewConn()
	r, name, err := m.Join(context.Background(), code, c, alias)
	require.NoError(t, err)
	return r, c, name
}

func TestRoom_Capacity(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok, bad int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Join(context.Background(), "room1", hubtest.NewConn(), "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, domain.ErrRoomFull) {
				bad++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultMaxPlayers, ok)
	assert.Equal(t, 6, bad)
	assert.ErrorIs(t, m.Admit("room1"), domain.ErrRoomFull)
}

func TestRoom_CapacityNeverExceedsFour(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxPlayers: 10})
	for i := 0; i < DefaultMaxPlayers; i++ {
		join(t, m, "big", "")
	}
	_, _, err := m.Join(context.Background(), "big", hubtest.NewConn(), "")
	assert.ErrorIs(t, err, domain.ErrRoomFull)
}

func TestRoom_InitAndJoinEvents(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, a, aName := join(t, m, "r", "")
	_, b, bName := join(t, m, "r", "")

	assert.NotEqual(t, aName, bName)

	initA := a.Maps()[0]
	assert.Equal(t, "init", initA["event"])
	assert.Equal(t, aName, initA["you"])
	assert.Equal(t, aName, initA["host"])
	assert.Equal(t, false, initA["started"])
	assert.NotEmpty(t, initA["text"])

	joins := a.Find("event", "join")
	require.Len(t, joins, 1)
	assert.Equal(t, bName, joins[0]["player"])
	assert.Len(t, joins[0]["players"], 2)

	assert.Equal(t, "init", b.Maps()[0]["event"])
	assert.Empty(t, b.Find("event", "join"))
}

func TestRoom_RequestedAliasAndDuplicate(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, _, first := join(t, m, "r", "Speedy")
	_, _, second := join(t, m, "r", "Speedy")

	assert.Equal(t, "Speedy", first)
	assert.NotEqual(t, "Speedy", second)
}

func TestRoom_OnlyHostStarts(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	r, a, _ := join(t, m, "r", "")
	_, b, _ := join(t, m, "r", "")

	assert.False(t, r.Start(b))
	assert.Equal(t, PhaseLobby, r.Phase())
	assert.Empty(t, a.Find("event", "start"))

	assert.True(t, r.Start(a))
	assert.False(t, r.Start(a))
	assert.Equal(t, PhaseStarted, r.Phase())
	assert.Len(t, a.Find("event", "start"), 1)
	assert.Len(t, b.Find("event", "start"), 1)
}

func TestRoom_StartUpdateNoEcho(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	r, a, _ := join(t, m, "r", "")
	_, b, bName := join(t, m, "r", "")

	assert.False(t, r.Progress(b, 3), "progress before start is ignored")
	require.True(t, r.Start(a))
	require.True(t, r.Progress(b, 10))

	updates := a.Find("event", "update")
	require.Len(t, updates, 1)
	assert.Equal(t, bName, updates[0]["player"])
	assert.EqualValues(t, 10, updates[0]["charsTyped"])
	assert.Empty(t, b.Find("event", "update"))
}

func TestRoom_FinishOnce(t *testing.T) {
	m, store := newTestManager(t, Config{})
	ctx := context.Background()
	r, a, _ := join(t, m, "r", "")
	_, b, _ := join(t, m, "r", "")

	_, ok, _ := store.Get(ctx, TextKey("r"))
	require.True(t, ok)

	assert.False(t, r.Finish(ctx, a, 1), "finish before start is ignored")
	require.True(t, r.Start(a))

	var wg sync.WaitGroup
	wins := make(chan bool, 2)
	for _, c := range []*hubtest.Conn{a, b} {
		wg.Add(1)
		go func(c *hubtest.Conn) {
			defer wg.Done()
			wins <- r.Finish(ctx, c, 12.5)
		}(c)
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)
	assert.Len(t, a.Find("event", "finish"), 1)
	assert.Len(t, b.Find("event", "finish"), 1)
	assert.Equal(t, PhaseFinished, r.Phase())
	assert.False(t, r.Progress(a, 30))

	_, ok, _ = store.Get(ctx, TextKey("r"))
	assert.False(t, ok)
	assert.ErrorIs(t, m.Admit("r"), domain.ErrRoomClosed)
}

func TestRoom_HostHandoffBeforeStart(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	r, a, _ := join(t, m, "r", "")
	_, b, bName := join(t, m, "r", "")
	_, c, _ := join(t, m, "r", "")

	m.Leave(r, a)

	leaves := b.Find("event", "leave")
	require.Len(t, leaves, 1)
	assert.Equal(t, bName, leaves[0]["host"])
	assert.Len(t, leaves[0]["players"], 2)
	assert.Equal(t, bName, r.Snapshot().Host)

	assert.False(t, r.Start(c))
	assert.True(t, r.Start(b))
}

func TestRoom_LastLeaveDestroys(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	r, a, _ := join(t, m, "r", "")
	_, b, _ := join(t, m, "r", "")

	m.Leave(r, a)
	assert.Equal(t, 1, m.Count())
	m.Leave(r, b)
	m.Leave(r, b)

	assert.Equal(t, 0, m.Count())
	assert.True(t, r.Closed())

	fresh, _, _ := join(t, m, "r", "")
	assert.NotSame(t, r, fresh)
	assert.Equal(t, PhaseLobby, fresh.Phase())
}

func TestRoom_TextFromCache(t *testing.T) {
	m, store := newTestManager(t, Config{})
	require.NoError(t, store.Put(context.Background(), TextKey("cached"), "custom text", time.Minute))

	r, _, _ := join(t, m, "cached", "")
	assert.Equal(t, "custom text", r.Snapshot().Text)
}

func TestRoom_TextFallbackOnKVFailure(t *testing.T) {
	m, store := newTestManager(t, Config{})
	require.NoError(t, store.Close())

	r, _, _ := join(t, m, "r", "")
	assert.Contains(t, snippets, r.Snapshot().Text)
}

func TestRoom_StrictProgress(t *testing.T) {
	m, _ := newTestManager(t, Config{StrictProgress: true})
	r, a, aName := join(t, m, "r", "")
	require.True(t, r.Start(a))

	textLen := len([]rune(r.Snapshot().Text))
	assert.True(t, r.Progress(a, 10_000))
	assert.Equal(t, textLen, r.Snapshot().Players[aName])
	assert.False(t, r.Progress(a, 1))
}

func TestManager_NewCode(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	code := m.NewCode()
	assert.Len(t, code, codeLength)
	for _, ch := range code {
		assert.Contains(t, codeAlphabet, string(ch))
	}
}

func TestPickAlias_Fallback(t *testing.T) {
	used := make(map[string]int)
	for _, n := range aliasPool {
		used[n] = 0
	}
	got := pickAlias(used)
	assert.Equal(t, "ChaosGoblin25", got)
}
