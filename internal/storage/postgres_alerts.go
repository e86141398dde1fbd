package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/jackc/pgx/v5"
)

func scanPostgresAlert(row pgx.Row) (*models.RecurringAlert, error) {
	var (
		a                          models.RecurringAlert
		category, severity, status string
	)
	err := row.Scan(
		&a.ID, &a.Pattern, &category, &a.Title, &a.OccurrenceCount, &a.AffectedUsers,
		&a.FirstOccurrence, &a.LastOccurrence, &severity, &a.Keywords, &a.SuggestedAction, &status,
		&a.AcknowledgedByID, &a.AcknowledgedAt, &a.ResolvedAt, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	a.Category = models.TicketCategory(category)
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	return &a, nil
}

func (db *Postgres) FindOpenAlert(ctx context.Context, pattern string, category models.TicketCategory) (*models.RecurringAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM recurring_alerts
		WHERE pattern = $1 AND category = $2 AND status = ANY($3)
		ORDER BY id
		LIMIT 1`

	return scanPostgresAlert(db.Pool.QueryRow(ctx, query,
		pattern, string(category), alertStatusStrings(models.OpenAlertStatuses)))
}

func (db *Postgres) CreateAlert(ctx context.Context, alert *models.RecurringAlert, memberships []models.AlertTicketMembership) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO recurring_alerts (
			pattern, category, title, occurrence_count, affected_users,
			first_occurrence, last_occurrence, severity, keywords, suggested_action, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		alert.Pattern, string(alert.Category), alert.Title, alert.OccurrenceCount, alert.AffectedUsers,
		alert.FirstOccurrence, alert.LastOccurrence, string(alert.Severity), alert.Keywords,
		alert.SuggestedAction, string(alert.Status),
	).Scan(&alert.ID, &alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	if err := insertPostgresMemberships(ctx, tx, alert.ID, memberships); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *Postgres) UpdateAlertMetrics(ctx context.Context, alert *models.RecurringAlert, memberships []models.AlertTicketMembership) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE recurring_alerts SET
			occurrence_count = $2,
			affected_users = $3,
			last_occurrence = $4,
			severity = $5,
			keywords = $6,
			suggested_action = $7,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($8)
		RETURNING updated_at`

	err = tx.QueryRow(ctx, query,
		alert.ID, alert.OccurrenceCount, alert.AffectedUsers, alert.LastOccurrence,
		string(alert.Severity), alert.Keywords, alert.SuggestedAction,
		alertStatusStrings(models.OpenAlertStatuses),
	).Scan(&alert.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return postgresMissingOrConflict(ctx, tx, alert.ID)
	}
	if err != nil {
		return fmt.Errorf("update alert metrics: %w", err)
	}

	if err := insertPostgresMemberships(ctx, tx, alert.ID, memberships); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertPostgresMemberships(ctx context.Context, tx pgx.Tx, alertID int64, memberships []models.AlertTicketMembership) error {
	query := `
		INSERT INTO alert_ticket_memberships (alert_id, ticket_id, confidence, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (alert_id, ticket_id) DO NOTHING`

	for _, m := range memberships {
		if _, err := tx.Exec(ctx, query, alertID, m.TicketID, m.Confidence, m.AddedAt); err != nil {
			return fmt.Errorf("upsert membership for ticket %d: %w", m.TicketID, err)
		}
	}
	return nil
}

func (db *Postgres) UpdateAlertLifecycle(ctx context.Context, alert *models.RecurringAlert, from models.AlertStatus) error {
	query := `
		UPDATE recurring_alerts SET
			status = $2,
			acknowledged_by_id = $3,
			acknowledged_at = $4,
			resolved_at = $5,
			notes = $6,
			updated_at = NOW()
		WHERE id = $1 AND status = $7
		RETURNING updated_at`

	err := db.Pool.QueryRow(ctx, query,
		alert.ID, string(alert.Status), alert.AcknowledgedByID, alert.AcknowledgedAt,
		alert.ResolvedAt, alert.Notes, string(from),
	).Scan(&alert.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return postgresMissingOrConflict(ctx, db.Pool, alert.ID)
	}
	if err != nil {
		return fmt.Errorf("update alert lifecycle: %w", err)
	}
	return nil
}

type postgresRowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresMissingOrConflict explains a guarded update that matched no rows
func postgresMissingOrConflict(ctx context.Context, q postgresRowQuerier, id int64) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM recurring_alerts WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check alert %d: %w", id, err)
	}
	return ErrConflict
}

func (db *Postgres) GetAlert(ctx context.Context, id int64) (*models.RecurringAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM recurring_alerts WHERE id = $1`
	return scanPostgresAlert(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.RecurringAlert, error) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.Statuses) > 0 {
		args = append(args, alertStatusStrings(filter.Statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.ID != 0 {
		args = append(args, filter.ID)
		conditions = append(conditions, fmt.Sprintf("id = $%d", len(args)))
	}

	query := `SELECT ` + alertColumns + ` FROM recurring_alerts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += alertListOrderSQL

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	list := []models.RecurringAlert{}
	for rows.Next() {
		a, err := scanPostgresAlert(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (db *Postgres) ListMemberships(ctx context.Context, alertID int64) ([]models.AlertTicketMembership, error) {
	query := `
		SELECT alert_id, ticket_id, confidence, added_at
		FROM alert_ticket_memberships
		WHERE alert_id = $1
		ORDER BY ticket_id`

	rows, err := db.Pool.Query(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	list := []models.AlertTicketMembership{}
	for rows.Next() {
		var m models.AlertTicketMembership
		if err := rows.Scan(&m.AlertID, &m.TicketID, &m.Confidence, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (db *Postgres) AlertStats(ctx context.Context) (*models.AlertStats, error) {
	stats := newAlertStats()

	rows, err := db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM recurring_alerts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count alerts by status: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		addStatusCount(stats, models.AlertStatus(status), count)
	}
	rows.Close()

	open := alertStatusStrings(models.OpenAlertStatuses)
	grouped := []struct {
		column string
		add    func(key string, count int)
	}{
		{"category", func(k string, c int) { stats.ByCategory[models.TicketCategory(k)] = c }},
		{"severity", func(k string, c int) { stats.BySeverity[models.Severity(k)] = c }},
	}

	for _, g := range grouped {
		query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM recurring_alerts WHERE status = ANY($1) GROUP BY %s`, g.column, g.column)
		rows, err := db.Pool.Query(ctx, query, open)
		if err != nil {
			return nil, fmt.Errorf("count open alerts by %s: %w", g.column, err)
		}
		for rows.Next() {
			var (
				key   string
				count int
			)
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s count: %w", g.column, err)
			}
			g.add(key, count)
		}
		rows.Close()
	}

	return stats, nil
}
