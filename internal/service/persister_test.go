package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/history"
	"github.com/surewhynot/realtime/internal/presence"
)

type memIdentities struct {
	saved map[string]domain.Identity
	fail  bool
}

func (m *memIdentities) UpsertBatch(_ context.Context, ids []domain.Identity) error {
	if m.fail {
		return errors.New("db down")
	}
	for _, u := range ids {
		m.saved[u.ID] = u
	}
	return nil
}

func (m *memIdentities) LoadAll(context.Context) ([]domain.Identity, error) {
	out := make([]domain.Identity, 0, len(m.saved))
	for _, u := range m.saved {
		out = append(out, u)
	}
	return out, nil
}

type memMessages struct {
	saved []domain.Message
	fail  bool
}

func (m *memMessages) SaveBatch(_ context.Context, msgs []domain.Message) error {
	if m.fail {
		return errors.New("db down")
	}
	m.saved = append(m.saved, msgs...)
	return nil
}

func (m *memMessages) LoadRecent(context.Context, int) ([]domain.Message, error) {
	return m.saved, nil
}

func TestPersister_FlushAndRestore(t *testing.T) {
	ids := &memIdentities{saved: map[string]domain.Identity{}}
	msgs := &memMessages{}

	tr := presence.NewTracker()
	store := history.NewStore(0, history.WithPersistence(0))
	tr.MarkSeen("u1")
	store.Append(domain.Message{ID: "m1", Room: "lobby", Text: "hi", CreatedAt: time.Now()})

	p := NewPersister(tr, store, ids, msgs, time.Second, 0, nil)
	require.NoError(t, p.Flush(context.Background()))
	assert.Len(t, ids.saved, 1)
	assert.Len(t, msgs.saved, 1)

	tr2 := presence.NewTracker()
	store2 := history.NewStore(0, history.WithPersistence(0))
	p2 := NewPersister(tr2, store2, ids, msgs, time.Second, 0, nil)
	require.NoError(t, p2.Restore(context.Background()))

	u, ok := tr2.Get("u1")
	require.True(t, ok)
	assert.Equal(t, presence.DailyLoginBonus, u.XPTotal)
	assert.Len(t, store2.Recent("lobby", 10), 1)
}

func TestPersister_FailedFlushRequeues(t *testing.T) {
	ids := &memIdentities{saved: map[string]domain.Identity{}, fail: true}
	msgs := &memMessages{fail: true}

	tr := presence.NewTracker()
	store := history.NewStore(0, history.WithPersistence(0))
	tr.MarkSeen("u1")
	store.Append(domain.Message{ID: "m1", Room: "lobby", Text: "hi"})

	p := NewPersister(tr, store, ids, msgs, time.Second, 0, nil)
	assert.Error(t, p.Flush(context.Background()))

	ids.fail, msgs.fail = false, false
	require.NoError(t, p.Flush(context.Background()))
	assert.Len(t, ids.saved, 1)
	assert.Len(t, msgs.saved, 1)
}

func TestPersister_RunFlushesOnCancel(t *testing.T) {
	ids := &memIdentities{saved: map[string]domain.Identity{}}
	msgs := &memMessages{}
	tr := presence.NewTracker()
	tr.MarkSeen("u1")

	p := NewPersister(tr, history.NewStore(0, history.WithPersistence(0)), ids, msgs, time.Hour, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	assert.Len(t, ids.saved, 1)
}
