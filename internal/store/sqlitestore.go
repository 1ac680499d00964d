package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists keys in a local SQLite database file.
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore opens (and creates) the database at path and ensures the kv table exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite store: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: create table: %w", err)
	}
	return &SQLiteStore{
		sqlStore: sqlStore{
			db:    db,
			table: "kv",
			dialect: sqlDialect{
				name:        "sqlite",
				placeholder: func(int) string { return "?" },
				selectValue: "value",
				upsert:      "INSERT INTO %s (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			},
		},
		path: path,
	}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }
