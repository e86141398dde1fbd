package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// SQLite is a single-node backend serving the same contracts as Postgres.
// It also owns local tickets and users tables so the detector can run without
// an AlmaDesk database.
type SQLite struct {
	path string
	db   *sql.DB
}

// Ensure SQLite implements Database
var _ Database = (*SQLite)(nil)

// NewSQLite opens (creating if needed) the database file at path
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return &SQLite{path: path, db: db}, nil
}

func (s *SQLite) GetName() string {
	return "sqlite"
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates every table. Timestamps are stored as Unix nanoseconds.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS tickets (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'MEDIUM',
			status TEXT NOT NULL DEFAULT 'OPEN',
			created_by_id INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
		`,
		`CREATE INDEX IF NOT EXISTS tickets_created_at_idx ON tickets(created_at DESC)`,
		`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'USER',
			active INTEGER NOT NULL DEFAULT 1
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS recurring_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pattern TEXT NOT NULL,
			category TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			occurrence_count INTEGER NOT NULL DEFAULT 0,
			affected_users INTEGER NOT NULL DEFAULT 0,
			first_occurrence INTEGER NOT NULL,
			last_occurrence INTEGER NOT NULL,
			severity TEXT NOT NULL DEFAULT 'LOW',
			keywords TEXT NOT NULL DEFAULT '[]',
			suggested_action TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			acknowledged_by_id INTEGER,
			acknowledged_at INTEGER,
			resolved_at INTEGER,
			notes TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS recurring_alerts_open_key_idx ON recurring_alerts(pattern, category) WHERE status IN ('ACTIVE', 'ACKNOWLEDGED')`,
		`CREATE INDEX IF NOT EXISTS recurring_alerts_status_idx ON recurring_alerts(status)`,
		`
		CREATE TABLE IF NOT EXISTS alert_ticket_memberships (
			alert_id INTEGER NOT NULL REFERENCES recurring_alerts(id) ON DELETE CASCADE,
			ticket_id INTEGER NOT NULL,
			confidence REAL NOT NULL DEFAULT 1.0,
			added_at INTEGER NOT NULL,
			PRIMARY KEY (alert_id, ticket_id)
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			user_id INTEGER,
			details TEXT NOT NULL DEFAULT '{}',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
		`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnixNano(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnixNano(n.Int64)
	return &t
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
