// Package store persists room and chat history in an embedded sqlite
// database. Persistence is best-effort bookkeeping: the live sync path never
// blocks on it, and a missing database only disables history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL,
	video_id   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	closed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rooms_code ON rooms(code);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT PRIMARY KEY,
	room_code  TEXT NOT NULL,
	username   TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_room ON chat_messages(room_code, created_at);
`

// Store wraps DB access.
type Store struct {
	DB *sqlx.DB
}

type RoomRecord struct {
	ID        string     `db:"id"`
	Code      string     `db:"code"`
	VideoID   string     `db:"video_id"`
	CreatedAt time.Time  `db:"created_at"`
	ClosedAt  *time.Time `db:"closed_at"`
}

type ChatRecord struct {
	ID        string    `db:"id"`
	RoomCode  string    `db:"room_code"`
	Username  string    `db:"username"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// Open connects to the sqlite database at path, creating the schema if
// needed. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under concurrent room activity.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *Store) RecordRoomCreated(ctx context.Context, code, videoID string) (string, error) {
	id := NewID()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO rooms (id, code, video_id, created_at) VALUES (?, ?, ?, ?)`,
		id, code, videoID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("record room: %w", err)
	}
	return id, nil
}

func (s *Store) RecordRoomClosed(ctx context.Context, code string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE rooms SET closed_at = ? WHERE code = ? AND closed_at IS NULL`,
		time.Now().UTC(), code)
	if err != nil {
		return fmt.Errorf("close room: %w", err)
	}
	return nil
}

func (s *Store) RecordChat(ctx context.Context, roomCode, username, body string) (string, error) {
	id := NewID()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chat_messages (id, room_code, username, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, roomCode, username, body, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("record chat: %w", err)
	}
	return id, nil
}

// RecentChat returns up to limit messages for the room, oldest first.
func (s *Store) RecentChat(ctx context.Context, roomCode string, limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ChatRecord
	err := s.DB.SelectContext(ctx, &out,
		`SELECT id, room_code, username, body, created_at FROM (
			SELECT id, room_code, username, body, created_at
			FROM chat_messages WHERE room_code = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at ASC, id ASC`,
		roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat: %w", err)
	}
	return out, nil
}

// LatestRoom returns the most recent room record for a code, ErrNotFound if
// the code was never seen.
func (s *Store) LatestRoom(ctx context.Context, code string) (RoomRecord, error) {
	var rec RoomRecord
	err := s.DB.GetContext(ctx, &rec,
		`SELECT id, code, video_id, created_at, closed_at FROM rooms
		 WHERE code = ? ORDER BY created_at DESC LIMIT 1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return RoomRecord{}, ErrNotFound
	}
	if err != nil {
		return RoomRecord{}, fmt.Errorf("latest room: %w", err)
	}
	return rec, nil
}
