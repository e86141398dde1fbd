package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAlert(row rowScanner) (*models.RecurringAlert, error) {
	var (
		a                             models.RecurringAlert
		category, severity, status    string
		keywordsJSON                  string
		first, last, created, updated int64
		ackBy, ackAt, resolvedAt      sql.NullInt64
		notes                         sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.Pattern, &category, &a.Title, &a.OccurrenceCount, &a.AffectedUsers,
		&first, &last, &severity, &keywordsJSON, &a.SuggestedAction, &status,
		&ackBy, &ackAt, &resolvedAt, &notes, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	if err := json.Unmarshal([]byte(keywordsJSON), &a.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}

	a.Category = models.TicketCategory(category)
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	a.FirstOccurrence = fromUnixNano(first)
	a.LastOccurrence = fromUnixNano(last)
	a.CreatedAt = fromUnixNano(created)
	a.UpdatedAt = fromUnixNano(updated)
	a.AcknowledgedAt = timePtr(ackAt)
	a.ResolvedAt = timePtr(resolvedAt)
	if ackBy.Valid {
		a.AcknowledgedByID = &ackBy.Int64
	}
	if notes.Valid {
		a.Notes = &notes.String
	}
	return &a, nil
}

func marshalKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("marshal keywords: %w", err)
	}
	return string(data), nil
}

func (s *SQLite) FindOpenAlert(ctx context.Context, pattern string, category models.TicketCategory) (*models.RecurringAlert, error) {
	open := alertStatusStrings(models.OpenAlertStatuses)
	query := `SELECT ` + alertColumns + `
		FROM recurring_alerts
		WHERE pattern = ? AND category = ? AND status IN (` + placeholders(len(open)) + `)
		ORDER BY id
		LIMIT 1`

	args := []any{pattern, string(category)}
	for _, st := range open {
		args = append(args, st)
	}
	return scanSQLiteAlert(s.db.QueryRowContext(ctx, query, args...))
}

func (s *SQLite) CreateAlert(ctx context.Context, alert *models.RecurringAlert, memberships []models.AlertTicketMembership) error {
	keywords, err := marshalKeywords(alert.Keywords)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `
		INSERT INTO recurring_alerts (
			pattern, category, title, occurrence_count, affected_users,
			first_occurrence, last_occurrence, severity, keywords, suggested_action, status,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		alert.Pattern, string(alert.Category), alert.Title, alert.OccurrenceCount, alert.AffectedUsers,
		toUnixNano(alert.FirstOccurrence), toUnixNano(alert.LastOccurrence), string(alert.Severity),
		keywords, alert.SuggestedAction, string(alert.Status), toUnixNano(now), toUnixNano(now),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read alert id: %w", err)
	}

	if err := insertSQLiteMemberships(ctx, tx, id, memberships); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert: %w", err)
	}

	alert.ID = id
	alert.CreatedAt = now
	alert.UpdatedAt = now
	return nil
}

func (s *SQLite) UpdateAlertMetrics(ctx context.Context, alert *models.RecurringAlert, memberships []models.AlertTicketMembership) error {
	keywords, err := marshalKeywords(alert.Keywords)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	open := alertStatusStrings(models.OpenAlertStatuses)
	query := `
		UPDATE recurring_alerts SET
			occurrence_count = ?, affected_users = ?, last_occurrence = ?,
			severity = ?, keywords = ?, suggested_action = ?, updated_at = ?
		WHERE id = ? AND status IN (` + placeholders(len(open)) + `)`

	args := []any{
		alert.OccurrenceCount, alert.AffectedUsers, toUnixNano(alert.LastOccurrence),
		string(alert.Severity), keywords, alert.SuggestedAction, toUnixNano(now), alert.ID,
	}
	for _, st := range open {
		args = append(args, st)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update alert metrics: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return missingOrConflict(ctx, tx, alert.ID)
	}

	if err := insertSQLiteMemberships(ctx, tx, alert.ID, memberships); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert metrics: %w", err)
	}

	alert.UpdatedAt = now
	return nil
}

func insertSQLiteMemberships(ctx context.Context, tx *sql.Tx, alertID int64, memberships []models.AlertTicketMembership) error {
	query := `
		INSERT INTO alert_ticket_memberships (alert_id, ticket_id, confidence, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (alert_id, ticket_id) DO NOTHING`

	for _, m := range memberships {
		if _, err := tx.ExecContext(ctx, query, alertID, m.TicketID, m.Confidence, toUnixNano(m.AddedAt)); err != nil {
			return fmt.Errorf("upsert membership for ticket %d: %w", m.TicketID, err)
		}
	}
	return nil
}

func (s *SQLite) UpdateAlertLifecycle(ctx context.Context, alert *models.RecurringAlert, from models.AlertStatus) error {
	now := time.Now().UTC()
	query := `
		UPDATE recurring_alerts SET
			status = ?, acknowledged_by_id = ?, acknowledged_at = ?,
			resolved_at = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(alert.Status), nullInt64(alert.AcknowledgedByID), nullUnixNano(alert.AcknowledgedAt),
		nullUnixNano(alert.ResolvedAt), nullString(alert.Notes), toUnixNano(now), alert.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update alert lifecycle: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return missingOrConflict(ctx, s.db, alert.ID)
	}

	alert.UpdatedAt = now
	return nil
}

type sqliteRowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// missingOrConflict explains a guarded update that matched no rows
func missingOrConflict(ctx context.Context, q sqliteRowQuerier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM recurring_alerts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check alert %d: %w", id, err)
	}
	return ErrConflict
}

func (s *SQLite) GetAlert(ctx context.Context, id int64) (*models.RecurringAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM recurring_alerts WHERE id = ?`
	return scanSQLiteAlert(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLite) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.RecurringAlert, error) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.ID != 0 {
		conditions = append(conditions, "id = ?")
		args = append(args, filter.ID)
	}

	query := `SELECT ` + alertColumns + ` FROM recurring_alerts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += alertListOrderSQL

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	list := []models.RecurringAlert{}
	for rows.Next() {
		a, err := scanSQLiteAlert(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (s *SQLite) ListMemberships(ctx context.Context, alertID int64) ([]models.AlertTicketMembership, error) {
	query := `
		SELECT alert_id, ticket_id, confidence, added_at
		FROM alert_ticket_memberships
		WHERE alert_id = ?
		ORDER BY ticket_id`

	rows, err := s.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	list := []models.AlertTicketMembership{}
	for rows.Next() {
		var (
			m       models.AlertTicketMembership
			addedAt int64
		)
		if err := rows.Scan(&m.AlertID, &m.TicketID, &m.Confidence, &addedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.AddedAt = fromUnixNano(addedAt)
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *SQLite) AlertStats(ctx context.Context) (*models.AlertStats, error) {
	stats := newAlertStats()

	counts, err := s.groupCount(ctx, `SELECT status, COUNT(*) FROM recurring_alerts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count alerts by status: %w", err)
	}
	for status, count := range counts {
		addStatusCount(stats, models.AlertStatus(status), count)
	}

	open := alertStatusStrings(models.OpenAlertStatuses)
	args := make([]any, 0, len(open))
	for _, st := range open {
		args = append(args, st)
	}
	where := ` WHERE status IN (` + placeholders(len(open)) + `)`

	counts, err = s.groupCount(ctx, `SELECT category, COUNT(*) FROM recurring_alerts`+where+` GROUP BY category`, args...)
	if err != nil {
		return nil, fmt.Errorf("count open alerts by category: %w", err)
	}
	for category, count := range counts {
		stats.ByCategory[models.TicketCategory(category)] = count
	}

	counts, err = s.groupCount(ctx, `SELECT severity, COUNT(*) FROM recurring_alerts`+where+` GROUP BY severity`, args...)
	if err != nil {
		return nil, fmt.Errorf("count open alerts by severity: %w", err)
	}
	for severity, count := range counts {
		stats.BySeverity[models.Severity(severity)] = count
	}

	return stats, nil
}

func (s *SQLite) groupCount(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}
