package models

import "time"

// Severity is the tier assigned to a recurring issue
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities from LOW (1) to CRITICAL (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AlertStatus is the lifecycle state of a RecurringAlert
type AlertStatus string

const (
	AlertActive       AlertStatus = "ACTIVE"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertResolved     AlertStatus = "RESOLVED"
	AlertDismissed    AlertStatus = "DISMISSED"
)

// OpenAlertStatuses are the statuses an alert can be merged into by reconciliation.
var OpenAlertStatuses = []AlertStatus{AlertActive, AlertAcknowledged}

// IsOpen reports whether reconciliation may still update an alert in this status.
func (s AlertStatus) IsOpen() bool {
	return s == AlertActive || s == AlertAcknowledged
}

// Pattern is a cluster of tickets judged to be the same recurring issue within one run.
type Pattern struct {
	Category            TicketCategory `json:"category"`
	RepresentativeTitle string         `json:"representative_title"`
	Members             []Ticket       `json:"members"` // detection order, newest first
	OccurrenceCount     int            `json:"occurrence_count"`
	AffectedUsers       int            `json:"affected_users"`
	FirstOccurrence     time.Time      `json:"first_occurrence"`
	LastOccurrence      time.Time      `json:"last_occurrence"`
	Keywords            []string       `json:"keywords"`
	Severity            Severity       `json:"severity"`
	SuggestedAction     string         `json:"suggested_action"`
}

// TicketIDs returns member ticket ids in member order.
func (p Pattern) TicketIDs() []int64 {
	ids := make([]int64, 0, len(p.Members))
	for _, t := range p.Members {
		ids = append(ids, t.ID)
	}
	return ids
}

// RecurringAlert is the persisted record of an ongoing recurring issue.
// (Pattern, Category) is the dedup key among open alerts.
type RecurringAlert struct {
	ID               int64          `json:"id"`
	Pattern          string         `json:"pattern"`
	Category         TicketCategory `json:"category"`
	Title            string         `json:"title"`
	OccurrenceCount  int            `json:"occurrence_count"`
	AffectedUsers    int            `json:"affected_users"`
	FirstOccurrence  time.Time      `json:"first_occurrence"`
	LastOccurrence   time.Time      `json:"last_occurrence"`
	Severity         Severity       `json:"severity"`
	Keywords         []string       `json:"keywords"`
	SuggestedAction  string         `json:"suggested_action"`
	Status           AlertStatus    `json:"status"`
	AcknowledgedByID *int64         `json:"acknowledged_by_id"`
	AcknowledgedAt   *time.Time     `json:"acknowledged_at"`
	ResolvedAt       *time.Time     `json:"resolved_at"`
	Notes            *string        `json:"notes"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// AlertTicketMembership links a ticket to the alert it was clustered into.
type AlertTicketMembership struct {
	AlertID    int64     `json:"alert_id"`
	TicketID   int64     `json:"ticket_id"`
	Confidence float64   `json:"confidence"`
	AddedAt    time.Time `json:"added_at"`
}

// AlertFilter narrows alert queries. Zero values mean "any".
type AlertFilter struct {
	Statuses []AlertStatus `json:"statuses,omitempty"`
	Severity Severity       `json:"severity,omitempty"`
	Category TicketCategory `json:"category,omitempty"`
	ID       int64          `json:"id,omitempty"`
}

// AlertStats aggregates the alert store. ByCategory and BySeverity only count open alerts.
type AlertStats struct {
	Total        int                    `json:"total"`
	Active       int                    `json:"active"`
	Acknowledged int                    `json:"acknowledged"`
	Resolved     int                    `json:"resolved"`
	Dismissed    int                    `json:"dismissed"`
	ByCategory   map[TicketCategory]int `json:"by_category"`
	BySeverity   map[Severity]int       `json:"by_severity"`
}
