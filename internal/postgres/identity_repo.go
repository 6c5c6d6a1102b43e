package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surewhynot/realtime/internal/domain"
)

type IdentityRepository struct {
	db *pgxpool.Pool
}

func NewIdentityRepository(db *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// UpsertBatch writes all identities in one round trip.
func (r *IdentityRepository) UpsertBatch(ctx context.Context, ids []domain.Identity) error {
	if len(ids) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, u := range ids {
		var lastSeen *time.Time
		if !u.LastSeenAt.IsZero() {
			ls := u.LastSeenAt
			lastSeen = &ls
		}
		b.Queue(upsertIdentitySQL,
			u.ID, u.DisplayName, u.Room, lastSeen, u.CreatedAt,
			u.XPTotal, u.DailyXP, u.LastLoginDay, u.SolvedDay)
	}
	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upsert identities: %w", err)
	}
	return nil
}

func (r *IdentityRepository) LoadAll(ctx context.Context) ([]domain.Identity, error) {
	rows, err := r.db.Query(ctx, selectIdentitiesSQL)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		var (
			u        domain.Identity
			lastSeen *time.Time
		)
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Room, &lastSeen, &u.CreatedAt,
			&u.XPTotal, &u.DailyXP, &u.LastLoginDay, &u.SolvedDay); err != nil {
			return nil, err
		}
		if lastSeen != nil {
			u.LastSeenAt = *lastSeen
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
