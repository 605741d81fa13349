// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides room/agent/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path. The schema is
// created automatically if it doesn't exist; parent directories are created
// as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("sqlite store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		name TEXT NOT NULL,
		persona TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agents_room ON agents(room_id);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		sender_id TEXT,
		agent_id TEXT,
		content TEXT NOT NULL,
		message_key TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages(room_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_key
		ON messages(room_id, message_key) WHERE message_key IS NOT NULL;
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRoom inserts a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *Room) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, topic, created_at) VALUES (?, ?, ?)`,
		room.ID, room.Topic, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}
	return nil
}

// GetRoom returns the room with the given id, or ErrNotFound.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*Room, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, created_at FROM rooms WHERE id = ?`, id)

	var room Room
	if err := row.Scan(&room.ID, &room.Topic, &room.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	return &room, nil
}

// ListRooms returns all rooms, newest first.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, created_at FROM rooms ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Topic, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// CreateAgent inserts a new agent.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, room_id, name, persona, created_at) VALUES (?, ?, ?, ?, ?)`,
		agent.ID, agent.RoomID, agent.Name, agent.Persona, agent.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

// ListAgentsByRoom returns a room's agents in creation order.
func (s *SQLiteStore) ListAgentsByRoom(ctx context.Context, roomID string) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, name, persona, created_at FROM agents
		 WHERE room_id = ? ORDER BY created_at ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.RoomID, &a.Name, &a.Persona, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}

// SaveMessage inserts a message. A collision on (room_id, message_key)
// returns ErrDuplicateKey; the existing row is authoritative.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	created := time.Now()
	if msg.CreatedAt != nil {
		created = *msg.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, agent_id, content, message_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.RoomID, nullable(msg.SenderID), nullable(msg.AgentID),
		msg.Content, nullable(msg.MessageKey), created)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	msg.CreatedAt = &created
	return nil
}

// GetMessagesByRoom returns up to limit messages for a room in chronological
// order. limit <= 0 means no limit.
func (s *SQLiteStore) GetMessagesByRoom(ctx context.Context, roomID string, limit int) ([]*Message, error) {
	query := `SELECT id, room_id, sender_id, agent_id, content, message_key, created_at
		 FROM messages WHERE room_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{roomID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; callers want chronological.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetMessageByKey returns the message with the given logical key, or
// ErrNotFound.
func (s *SQLiteStore) GetMessageByKey(ctx context.Context, roomID, messageKey string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, room_id, sender_id, agent_id, content, message_key, created_at
		 FROM messages WHERE room_id = ? AND message_key = ?`, roomID, messageKey)

	msg, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var msg Message
	var senderID, agentID, messageKey sql.NullString
	var created time.Time
	if err := row.Scan(&msg.ID, &msg.RoomID, &senderID, &agentID,
		&msg.Content, &messageKey, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	msg.SenderID = senderID.String
	msg.AgentID = agentID.String
	msg.MessageKey = messageKey.String
	msg.CreatedAt = &created
	return &msg, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
