package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surewhynot/realtime/internal/domain"
)

func TestStore_RoomsAreIndependent(t *testing.T) {
	s := NewStore(0)
	for i := 0; i < 5; i++ {
		s.Append(msg("lobby", i))
	}
	s.Append(msg("dev", 99))

	got := s.Recent("lobby", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].ID)
	assert.Equal(t, "m4", got[1].ID)

	assert.Len(t, s.Recent("dev", 50), 1)
	assert.Empty(t, s.Recent("nowhere", 50))
	assert.Equal(t, 6, s.Total())
}

func TestStore_DrainAndRequeue(t *testing.T) {
	s := NewStore(0, WithPersistence(0))
	s.Append(msg("lobby", 1))
	s.Append(msg("lobby", 2))

	batch := s.Drain()
	require.Len(t, batch, 2)
	assert.Empty(t, s.Drain())

	s.Append(msg("lobby", 3))
	s.Requeue(batch)
	again := s.Drain()
	require.Len(t, again, 3)
	assert.Equal(t, "m1", again[0].ID)
	assert.Equal(t, "m3", again[2].ID)
}

func TestStore_RestoreDoesNotQueue(t *testing.T) {
	s := NewStore(0, WithPersistence(0))
	s.Restore([]domain.Message{msg("lobby", 2), msg("lobby", 1)})

	got := s.Recent("lobby", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Empty(t, s.Drain())
	assert.Equal(t, 0, s.Appended())
}

func TestStore_WithoutPersistenceKeepsNothingPending(t *testing.T) {
	s := NewStore(DefaultCapacity)
	for i := 0; i < 1000; i++ {
		s.Append(msg("lobby", i))
	}

	assert.Equal(t, DefaultCapacity, s.Total())
	assert.Equal(t, 1000, s.Appended())
	assert.Zero(t, s.Pending())
	assert.Empty(t, s.Drain())

	s.Requeue([]domain.Message{msg("lobby", 1)})
	assert.Zero(t, s.Pending())
}

func TestStore_PendingIsBounded(t *testing.T) {
	s := NewStore(0, WithPersistence(3))
	for i := 0; i < 5; i++ {
		s.Append(msg("lobby", i))
	}
	assert.Equal(t, 3, s.Pending())
	assert.Equal(t, 2, s.Dropped())

	batch := s.Drain()
	require.Len(t, batch, 3)
	assert.Equal(t, "m2", batch[0].ID)

	// a failed flush plus new traffic keeps the newest messages only
	s.Append(msg("lobby", 5))
	s.Append(msg("lobby", 6))
	s.Requeue(batch)
	again := s.Drain()
	require.Len(t, again, 3)
	assert.Equal(t, "m4", again[0].ID)
	assert.Equal(t, "m6", again[2].ID)
	assert.Equal(t, 4, s.Dropped())
}
