package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// sqlDialect holds the statements that differ between SQLite and Postgres.
type sqlDialect struct {
	name        string
	placeholder func(n int) string
	selectValue string
	upsert      string
}

// sqlStore implements Store over a two-column key/value table.
type sqlStore struct {
	db      *sql.DB
	table   string
	dialect sqlDialect
}

func (s *sqlStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		placeholders[i] = s.dialect.placeholder(i + 1)
		args[i] = key
	}
	query := fmt.Sprintf("SELECT key, %s FROM %s WHERE key IN (%s)", s.dialect.selectValue, s.table, strings.Join(placeholders, ", "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s store: query: %w", s.dialect.name, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%s store: scan: %w", s.dialect.name, err)
		}
		out[key] = json.RawMessage(value)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s store: rows: %w", s.dialect.name, err)
	}
	return out, nil
}

// Set upserts every key in one transaction.
func (s *sqlStore) Set(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	raw, err := encodeValues(values)
	if err != nil {
		return fmt.Errorf("%s store: %w", s.dialect.name, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s store: begin: %w", s.dialect.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(s.dialect.upsert, s.table)
	for key, value := range raw {
		if _, err = tx.ExecContext(ctx, query, key, string(value)); err != nil {
			return fmt.Errorf("%s store: upsert %s: %w", s.dialect.name, key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s store: commit: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table); err != nil {
		return fmt.Errorf("%s store: clear: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
