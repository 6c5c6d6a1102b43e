package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surewhynot/realtime/internal/domain"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// SaveBatch inserts messages; ids already stored are skipped.
func (r *ChatRepository) SaveBatch(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, m := range msgs {
		b.Queue(insertMessageSQL, m.ID, m.Room, m.AuthorID, m.DisplayName, m.Text, m.CreatedAt)
	}
	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	return nil
}

// LoadRecent returns up to perRoom latest messages of every room, oldest first.
func (r *ChatRepository) LoadRecent(ctx context.Context, perRoom int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, selectRecentMessagesSQL, perRoom)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return collectMessages(rows)
}

// Archive pages a room's stored messages newest first with a cursor over
// (created_at, id).
func (r *ChatRepository) Archive(ctx context.Context, room, after string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	cur, err := DecodeCursor(after, room)
	if err != nil {
		return nil, "", err
	}

	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, selectArchiveSQL, room, createdAt, id, limit)
	if err != nil {
		return nil, "", fmt.Errorf("archive %s: %w", room, err)
	}
	out, err := collectMessages(rows)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		next = Cursor{Room: room, CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return out, next, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()
	out := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.Room, &m.AuthorID, &m.DisplayName, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
