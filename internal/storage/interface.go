package storage

import (
	"context"
	"errors"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a guarded write finds the record in a
	// different status than the caller read
	ErrConflict = errors.New("record changed concurrently")
)

// StorageInterface defines the contract for archiving run reports
type StorageInterface interface {
	Store(ctx context.Context, filename string, data []byte) error
	Retrieve(ctx context.Context, filename string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// AlertStore persists recurring alerts and their ticket memberships
type AlertStore interface {
	// FindOpenAlert returns the ACTIVE or ACKNOWLEDGED alert for the key, or ErrNotFound.
	FindOpenAlert(ctx context.Context, pattern string, category models.TicketCategory) (*models.RecurringAlert, error)
	// CreateAlert inserts the alert and its memberships in one transaction and sets alert.ID.
	CreateAlert(ctx context.Context, alert *models.RecurringAlert, memberships []models.AlertTicketMembership) error
	// UpdateAlertMetrics refreshes occurrence metrics and upserts memberships in one transaction.
	// Status and lifecycle fields are left untouched. Returns ErrConflict when the
	// alert is no longer ACTIVE or ACKNOWLEDGED.
	UpdateAlertMetrics(ctx context.Context, alert *models.RecurringAlert, memberships []models.AlertTicketMembership) error
	// UpdateAlertLifecycle writes status, acknowledgement, resolution and notes
	// fields only while the stored status is still from. Returns ErrConflict otherwise.
	UpdateAlertLifecycle(ctx context.Context, alert *models.RecurringAlert, from models.AlertStatus) error
	GetAlert(ctx context.Context, id int64) (*models.RecurringAlert, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.RecurringAlert, error)
	ListMemberships(ctx context.Context, alertID int64) ([]models.AlertTicketMembership, error)
	AlertStats(ctx context.Context) (*models.AlertStats, error)
}

// UserDirectory looks up AlmaDesk users
type UserDirectory interface {
	// ListAdmins returns active ADMIN and SUPER_ADMIN users that have an email address.
	ListAdmins(ctx context.Context) ([]models.User, error)
}

// AuditRepository persists audit entries
type AuditRepository interface {
	SaveAuditEntry(ctx context.Context, entry models.AuditEntry) error
}

// Database is a SQL backend serving every contract the detector needs, including
// reading tickets.
type Database interface {
	AlertStore
	UserDirectory
	AuditRepository

	GetName() string
	FetchTickets(ctx context.Context, since time.Time, excluded []models.TicketStatus) ([]models.Ticket, error)
	EnsureSchema(ctx context.Context) error
	Close() error
}
