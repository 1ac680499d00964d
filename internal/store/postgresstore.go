package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultStateTable = "linkmark_state"

// PostgresStoreConfig captures configuration required to initialize a Postgres-backed store.
type PostgresStoreConfig struct {
	DSN    string
	Schema string
	Table  string
}

// PostgresStore persists keys as JSONB rows in PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects, pings and ensures the schema and table exist.
func NewPostgresStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	if cfg.Table == "" {
		cfg.Table = defaultStateTable
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}

	table := quoteIdentifier(cfg.Table)
	if schema := strings.TrimSpace(cfg.Schema); schema != "" {
		if _, err = db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdentifier(schema)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres store: create schema: %w", err)
		}
		table = quoteIdentifier(schema) + "." + table
	}
	if _, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: create table: %w", err)
	}

	return &PostgresStore{sqlStore{
		db:    db,
		table: table,
		dialect: sqlDialect{
			name:        "postgres",
			placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
			selectValue: "value::text",
			upsert: `INSERT INTO %s (key, value, updated_at) VALUES ($1, $2::jsonb, NOW())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		},
	}}, nil
}

func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
