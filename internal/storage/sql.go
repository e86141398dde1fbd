package storage

import (
	"strings"

	"github.com/almadesk/recurring-alerts/internal/models"
)

// severityRankSQL orders alerts CRITICAL first when used with DESC
const severityRankSQL = `CASE severity
		WHEN 'CRITICAL' THEN 4
		WHEN 'HIGH' THEN 3
		WHEN 'MEDIUM' THEN 2
		WHEN 'LOW' THEN 1
		ELSE 0 END`

const alertListOrderSQL = ` ORDER BY ` + severityRankSQL + ` DESC, last_occurrence DESC, id ASC`

const alertColumns = `id, pattern, category, title, occurrence_count, affected_users,
	first_occurrence, last_occurrence, severity, keywords, suggested_action, status,
	acknowledged_by_id, acknowledged_at, resolved_at, notes, created_at, updated_at`

var adminRoles = []string{string(models.RoleAdmin), string(models.RoleSuperAdmin)}

func alertStatusStrings(statuses []models.AlertStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func ticketStatusStrings(statuses []models.TicketStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// placeholders returns "?, ?, ?" for n SQLite bind parameters
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func newAlertStats() *models.AlertStats {
	return &models.AlertStats{
		ByCategory: make(map[models.TicketCategory]int),
		BySeverity: make(map[models.Severity]int),
	}
}

func addStatusCount(stats *models.AlertStats, status models.AlertStatus, count int) {
	stats.Total += count
	switch status {
	case models.AlertActive:
		stats.Active = count
	case models.AlertAcknowledged:
		stats.Acknowledged = count
	case models.AlertResolved:
		stats.Resolved = count
	case models.AlertDismissed:
		stats.Dismissed = count
	}
}
