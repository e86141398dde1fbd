package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the AlmaDesk database backend
type Postgres struct {
	Pool *pgxpool.Pool
}

// Ensure Postgres implements Database
var _ Database = (*Postgres)(nil)

// NewPostgres opens a connection pool and verifies it with a ping
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (db *Postgres) GetName() string {
	return "postgres"
}

func (db *Postgres) Close() error {
	db.Pool.Close()
	return nil
}

// EnsureSchema creates the tables owned by the detector. The tickets and users
// tables belong to AlmaDesk and are expected to exist.
func (db *Postgres) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS recurring_alerts (
			id BIGSERIAL PRIMARY KEY,
			pattern TEXT NOT NULL,
			category TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			occurrence_count INTEGER NOT NULL DEFAULT 0,
			affected_users INTEGER NOT NULL DEFAULT 0,
			first_occurrence TIMESTAMPTZ NOT NULL,
			last_occurrence TIMESTAMPTZ NOT NULL,
			severity TEXT NOT NULL DEFAULT 'LOW',
			keywords TEXT[] NOT NULL DEFAULT '{}',
			suggested_action TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			acknowledged_by_id BIGINT,
			acknowledged_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS recurring_alerts_open_key_idx ON recurring_alerts(pattern, category) WHERE status IN ('ACTIVE', 'ACKNOWLEDGED')`,
		`CREATE INDEX IF NOT EXISTS recurring_alerts_status_idx ON recurring_alerts(status)`,
		`CREATE INDEX IF NOT EXISTS recurring_alerts_last_occurrence_idx ON recurring_alerts(last_occurrence DESC)`,
		`
		CREATE TABLE IF NOT EXISTS alert_ticket_memberships (
			alert_id BIGINT NOT NULL REFERENCES recurring_alerts(id) ON DELETE CASCADE,
			ticket_id BIGINT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (alert_id, ticket_id)
		)
		`,
		`CREATE INDEX IF NOT EXISTS alert_ticket_memberships_ticket_idx ON alert_ticket_memberships(ticket_id)`,
		`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id BIGINT NOT NULL,
			user_id BIGINT,
			details JSONB NOT NULL DEFAULT '{}',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS audit_logs_entity_idx ON audit_logs(entity_type, entity_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
