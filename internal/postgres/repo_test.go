package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surewhynot/realtime/internal/domain"
)

// setupPool connects to TEST_DATABASE_URL or skips.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, Config{DSN: dsn, MaxConns: 2})
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

func TestIdentityRepository_UpsertLoad(t *testing.T) {
	pool := setupPool(t)
	repo := NewIdentityRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	u := domain.NewIdentity(uuid.NewString(), now)
	u.XPTotal = 11
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Identity{u}))

	u.XPTotal = 12
	u.LastSeenAt = now
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Identity{u}))

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	var found *domain.Identity
	for i := range all {
		if all[i].ID == u.ID {
			found = &all[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 12, found.XPTotal)
	assert.True(t, now.Equal(found.LastSeenAt))
}

func TestChatRepository_ArchivePages(t *testing.T) {
	pool := setupPool(t)
	repo := NewChatRepository(pool)
	ctx := context.Background()

	room := "test-" + uuid.NewString()[:8]
	base := time.Now().UTC().Truncate(time.Millisecond)
	msgs := make([]domain.Message, 0, 5)
	for i := 0; i < 5; i++ {
		msgs = append(msgs, domain.Message{
			ID: uuid.NewString(), Room: room, AuthorID: "u", DisplayName: "u",
			Text: "hi", CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, repo.SaveBatch(ctx, msgs))
	require.NoError(t, repo.SaveBatch(ctx, msgs[:1]))

	page, next, err := repo.Archive(ctx, room, "", 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, msgs[4].ID, page[0].ID)
	require.NotEmpty(t, next)

	rest, next, err := repo.Archive(ctx, room, next, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Empty(t, next)
}
