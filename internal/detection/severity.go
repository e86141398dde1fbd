package detection

import "github.com/almadesk/recurring-alerts/internal/models"

// ClassifySeverity maps occurrence and affected-user counts to a severity tier.
// Tiers are checked from CRITICAL down and the first match wins.
func ClassifySeverity(occurrences, affectedUsers int) models.Severity {
	switch {
	case occurrences >= 10 || affectedUsers >= 5:
		return models.SeverityCritical
	case occurrences >= 6 || affectedUsers >= 3:
		return models.SeverityHigh
	case occurrences >= 4 || affectedUsers >= 2:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
