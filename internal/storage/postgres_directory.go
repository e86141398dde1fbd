package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
)

// FetchTickets reads AlmaDesk tickets created at or after since, newest first
func (db *Postgres) FetchTickets(ctx context.Context, since time.Time, excluded []models.TicketStatus) ([]models.Ticket, error) {
	query := `
		SELECT id, title, COALESCE(description, ''), category, priority, status, created_by_id, created_at
		FROM tickets
		WHERE created_at >= $1 AND NOT (status = ANY($2))
		ORDER BY created_at DESC, id DESC`

	rows, err := db.Pool.Query(ctx, query, since, ticketStatusStrings(excluded))
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var (
			t                          models.Ticket
			category, priority, status string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &category, &priority, &status, &t.CreatedByID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.Category = models.TicketCategory(category)
		t.Priority = models.TicketPriority(priority)
		t.Status = models.TicketStatus(status)
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (db *Postgres) ListAdmins(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, email, name, role, active
		FROM users
		WHERE role = ANY($1) AND active AND email <> ''
		ORDER BY id`

	rows, err := db.Pool.Query(ctx, query, adminRoles)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var (
			u    models.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Active); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = models.UserRole(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *Postgres) SaveAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]string{}
	}

	query := `
		INSERT INTO audit_logs (action, entity_type, entity_id, user_id, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := db.Pool.Exec(ctx, query,
		entry.Action, entry.EntityType, entry.EntityID, entry.UserID, details,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
