package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// MaxHistoryPerOperation bounds the stored responses of one operation
const MaxHistoryPerOperation = 50

// SQLite implements Store on a single sqlite database file
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and creates when needed) the database at path
func OpenSQLite(path string) (*SQLite, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store database: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		spec_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (spec_id, key)
	);

	CREATE TABLE IF NOT EXISTS response_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		spec_id TEXT NOT NULL,
		operation_key TEXT NOT NULL,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		response TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_response_history_spec ON response_history(spec_id, id DESC);
	CREATE INDEX IF NOT EXISTS idx_response_history_operation ON response_history(spec_id, operation_key);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize store schema: %w", err)
	}
	return nil
}

// Get returns the value stored for (specID, key), or ErrNotFound
func (s *SQLite) Get(ctx context.Context, specID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE spec_id = ? AND key = ?`, specID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Put inserts or replaces the value for (specID, key)
func (s *SQLite) Put(ctx context.Context, specID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (spec_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (spec_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, specID, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes the value for (specID, key). Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, specID, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE spec_id = ? AND key = ?`, specID, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// AppendResponse stores a response and prunes the operation's oldest entries
func (s *SQLite) AppendResponse(ctx context.Context, entry HistoryEntry) (int64, error) {
	payload, err := json.Marshal(entry.Response)
	if err != nil {
		return 0, fmt.Errorf("failed to encode response: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO response_history (spec_id, operation_key, method, url, status, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.SpecID, entry.OperationKey, entry.Method, entry.URL, entry.Response.Status, string(payload), createdAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to save response: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read response id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM response_history
		WHERE spec_id = ? AND operation_key = ? AND id NOT IN (
			SELECT id FROM response_history
			WHERE spec_id = ? AND operation_key = ?
			ORDER BY id DESC LIMIT ?
		)
	`, entry.SpecID, entry.OperationKey, entry.SpecID, entry.OperationKey, MaxHistoryPerOperation)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit response: %w", err)
	}
	return id, nil
}

// ListResponses returns stored responses for a document, newest first.
// A limit of zero or less returns everything.
func (s *SQLite) ListResponses(ctx context.Context, specID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_id, operation_key, method, url, response, created_at
		FROM response_history
		WHERE spec_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, specID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry     HistoryEntry
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.SpecID, &entry.OperationKey, &entry.Method, &entry.URL, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Response); err != nil {
			return nil, fmt.Errorf("failed to decode history entry %d: %w", entry.ID, err)
		}
		entry.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}
