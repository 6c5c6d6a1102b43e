package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS identities (
	id             TEXT PRIMARY KEY,
	display_name   TEXT        NOT NULL,
	room           TEXT        NOT NULL DEFAULT 'lobby',
	last_seen_at   TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	xp_total       INTEGER     NOT NULL DEFAULT 0,
	daily_xp       INTEGER     NOT NULL DEFAULT 0,
	last_login_day TEXT        NOT NULL DEFAULT '',
	solved_day     TEXT        NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id           TEXT PRIMARY KEY,
	room         TEXT        NOT NULL,
	author_id    TEXT        NOT NULL,
	display_name TEXT        NOT NULL,
	text         TEXT        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS chat_messages_room_created_idx
	ON chat_messages (room, created_at DESC, id DESC);
`

const upsertIdentitySQL = `
INSERT INTO identities (id, display_name, room, last_seen_at, created_at, xp_total, daily_xp, last_login_day, solved_day)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	display_name   = EXCLUDED.display_name,
	room           = EXCLUDED.room,
	last_seen_at   = EXCLUDED.last_seen_at,
	xp_total       = EXCLUDED.xp_total,
	daily_xp       = EXCLUDED.daily_xp,
	last_login_day = EXCLUDED.last_login_day,
	solved_day     = EXCLUDED.solved_day
`

const selectIdentitiesSQL = `
SELECT id, display_name, room, last_seen_at, created_at, xp_total, daily_xp, last_login_day, solved_day
FROM identities
`

const insertMessageSQL = `
INSERT INTO chat_messages (id, room, author_id, display_name, text, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING
`

// last $1 messages of every room
const selectRecentMessagesSQL = `
SELECT id, room, author_id, display_name, text, created_at
FROM (
	SELECT *, row_number() OVER (PARTITION BY room ORDER BY created_at DESC, id DESC) AS rn
	FROM chat_messages
) m
WHERE rn <= $1
ORDER BY created_at, id
`

const selectArchiveSQL = `
SELECT id, room, author_id, display_name, text, created_at
FROM chat_messages
WHERE room = $1
  AND (
    $2::timestamptz IS NULL
    OR created_at < $2
    OR (created_at = $2 AND id < $3)
  )
ORDER BY created_at DESC, id DESC
LIMIT $4
`
