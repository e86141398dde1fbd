package models

import "time"

// TicketCategory is the AlmaDesk ticket category
type TicketCategory string

const (
	CategoryHardware TicketCategory = "HARDWARE"
	CategorySoftware TicketCategory = "SOFTWARE"
	CategoryNetwork  TicketCategory = "NETWORK"
	CategoryAccount  TicketCategory = "ACCOUNT"
	CategoryEmail    TicketCategory = "EMAIL"
	CategoryOther    TicketCategory = "OTHER"
)

// TicketStatus is the lifecycle state of a ticket in AlmaDesk
type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketWaiting    TicketStatus = "WAITING"
	TicketResolved   TicketStatus = "RESOLVED"
	TicketClosed     TicketStatus = "CLOSED"
)

// TicketPriority is the priority assigned to a ticket
type TicketPriority string

const (
	PriorityLow      TicketPriority = "LOW"
	PriorityMedium   TicketPriority = "MEDIUM"
	PriorityHigh     TicketPriority = "HIGH"
	PriorityCritical TicketPriority = "CRITICAL"
)

// Ticket is a helpdesk ticket as read from AlmaDesk. The detector never writes tickets.
type Ticket struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    TicketCategory `json:"category"`
	Priority    TicketPriority `json:"priority"`
	Status      TicketStatus   `json:"status"`
	CreatedByID int64          `json:"created_by_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// UserRole is the AlmaDesk role of a user
type UserRole string

const (
	RoleUser       UserRole = "USER"
	RoleAgent      UserRole = "AGENT"
	RoleAdmin      UserRole = "ADMIN"
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
)

// User is an entry of the AlmaDesk user directory
type User struct {
	ID     int64    `json:"id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	Active bool     `json:"active"`
}

// Email is a single outgoing message
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// AuditEntry is one row of the audit trail emitted on alert lifecycle transitions
type AuditEntry struct {
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type"` // always "RecurringAlert" for this service
	EntityID   int64             `json:"entity_id"`
	UserID     *int64            `json:"user_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
