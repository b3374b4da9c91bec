// ABOUTME: Durable per-conversation transcript cache backed by SQLite
// ABOUTME: Stores one serialized message array per conversation key

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parlorhq/parlor-go/internal/api"
)

// keyPrefix namespaces transcript entries in the kv table.
const keyPrefix = "chat_messages_"

// Store persists conversation transcripts across process restarts. Each
// conversation maps to a single kv row holding the full ordered message
// array; a save replaces the row wholesale, matching the cache's
// server-wins overwrite semantics.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the cache database at the given path. Parent
// directories are created if needed.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// createSchema creates the kv table if it doesn't exist.
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the cached transcript for a conversation. A missing or
// unreadable entry reads as a miss; corrupt payloads are logged, not fatal.
func (s *Store) Load(ctx context.Context, conversationID string) ([]api.ChatMessage, bool) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = ?", key(conversationID),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("transcript read failed", "error", err, "conversation_id", conversationID)
		return nil, false
	}

	var msgs []api.ChatMessage
	if err := json.Unmarshal([]byte(value), &msgs); err != nil {
		s.logger.Warn("discarding corrupt transcript entry", "error", err, "conversation_id", conversationID)
		return nil, false
	}
	return msgs, true
}

// Save replaces the cached transcript for a conversation with msgs.
func (s *Store) Save(ctx context.Context, conversationID string, msgs []api.ChatMessage) error {
	value, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key(conversationID), string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}

// Delete removes the cached transcript for a conversation.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key(conversationID)); err != nil {
		return fmt.Errorf("deleting transcript: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// key builds the kv key for a conversation.
func key(conversationID string) string {
	return keyPrefix + conversationID
}
