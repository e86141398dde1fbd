package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
)

// FetchTickets reads tickets created at or after since, newest first
func (s *SQLite) FetchTickets(ctx context.Context, since time.Time, excluded []models.TicketStatus) ([]models.Ticket, error) {
	query := `
		SELECT id, title, description, category, priority, status, created_by_id, created_at
		FROM tickets
		WHERE created_at >= ?`
	args := []any{toUnixNano(since)}
	if len(excluded) > 0 {
		query += ` AND status NOT IN (` + placeholders(len(excluded)) + `)`
		for _, st := range ticketStatusStrings(excluded) {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var (
			t                          models.Ticket
			category, priority, status string
			createdAt                  int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &category, &priority, &status, &t.CreatedByID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.Category = models.TicketCategory(category)
		t.Priority = models.TicketPriority(priority)
		t.Status = models.TicketStatus(status)
		t.CreatedAt = fromUnixNano(createdAt)
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// ImportTickets inserts or replaces tickets in the local tickets table
func (s *SQLite) ImportTickets(ctx context.Context, tickets []models.Ticket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT OR REPLACE INTO tickets (id, title, description, category, priority, status, created_by_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, t := range tickets {
		_, err := tx.ExecContext(ctx, query,
			t.ID, t.Title, t.Description, string(t.Category), string(t.Priority), string(t.Status),
			t.CreatedByID, toUnixNano(t.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert ticket %d: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// ImportUsers inserts or replaces users in the local users table
func (s *SQLite) ImportUsers(ctx context.Context, users []models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT OR REPLACE INTO users (id, email, name, role, active) VALUES (?, ?, ?, ?, ?)`
	for _, u := range users {
		if _, err := tx.ExecContext(ctx, query, u.ID, u.Email, u.Name, string(u.Role), boolToInt(u.Active)); err != nil {
			return fmt.Errorf("insert user %d: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListAdmins(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, email, name, role, active
		FROM users
		WHERE role IN (` + placeholders(len(adminRoles)) + `) AND active = 1 AND email <> ''
		ORDER BY id`

	args := make([]any, 0, len(adminRoles))
	for _, r := range adminRoles {
		args = append(args, r)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var (
			u      models.User
			role   string
			active int
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &role, &active); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = models.UserRole(role)
		u.Active = active == 1
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLite) SaveAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (action, entity_type, entity_id, user_id, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		entry.Action, entry.EntityType, entry.EntityID, nullInt64(entry.UserID), string(detailsJSON),
		entry.IPAddress, entry.UserAgent, toUnixNano(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the audit trail of one entity, oldest first
func (s *SQLite) ListAuditEntries(ctx context.Context, entityType string, entityID int64) ([]models.AuditEntry, error) {
	query := `
		SELECT action, entity_type, entity_id, user_id, details, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var (
			e           models.AuditEntry
			userID      sql.NullInt64
			detailsJSON string
			createdAt   int64
		)
		if err := rows.Scan(&e.Action, &e.EntityType, &e.EntityID, &userID, &detailsJSON, &e.IPAddress, &e.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		e.CreatedAt = fromUnixNano(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
