package models

import "time"

// RunReport summarizes one analysis run
type RunReport struct {
	RunID               string           `json:"run_id"`
	StartedAt           time.Time        `json:"started_at"`
	Duration            string           `json:"duration"`
	WindowStart         time.Time        `json:"window_start"`
	TicketsAnalyzed     int              `json:"tickets_analyzed"`
	PatternsDetected    int              `json:"patterns_detected"`
	AlertsCreated       int              `json:"alerts_created"`
	AlertsUpdated       int              `json:"alerts_updated"`
	ReconcileErrors     int              `json:"reconcile_errors"`
	CriticalAlerts      int              `json:"critical_alerts"`
	NotificationsSent   int              `json:"notifications_sent"`
	NotificationsFailed int              `json:"notifications_failed"`
	Alerts              []RecurringAlert `json:"alerts"`
}
