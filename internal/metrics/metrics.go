// Package metrics provides Prometheus metrics for the recurring issue detector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "almadesk"
	subsystem = "recurring"
)

// Analysis run metrics
var (
	// AnalysisRunsTotal counts finished analysis runs by result (success, failed, cancelled).
	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_runs_total",
			Help:      "Total analysis runs by result",
		},
		[]string{"result"},
	)

	// AnalysisRejectedTotal counts runs refused because another run was in progress.
	AnalysisRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_rejected_total",
			Help:      "Analysis runs rejected while another run was in progress",
		},
	)

	// AnalysisDuration tracks analysis run latency.
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_duration_seconds",
			Help:      "Analysis run duration in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// AnalysisInProgress is 1 while a run holds the guard.
	AnalysisInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_in_progress",
			Help:      "Whether an analysis run is currently executing",
		},
	)

	// TicketsAnalyzed reports the ticket count of the last run.
	TicketsAnalyzed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tickets_analyzed",
			Help:      "Tickets inside the analysis window of the last run",
		},
	)

	// PatternsDetectedTotal counts detected patterns by category.
	PatternsDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "patterns_detected_total",
			Help:      "Total patterns detected by category",
		},
		[]string{"category"},
	)
)

// Alert metrics
var (
	// AlertsReconciledTotal counts reconciled alerts by outcome (created, updated, error).
	AlertsReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_reconciled_total",
			Help:      "Total pattern reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	// AlertTransitionsTotal counts lifecycle transitions by target status.
	AlertTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alert_transitions_total",
			Help:      "Total alert lifecycle transitions by target status",
		},
		[]string{"status"},
	)
)

// Notification metrics
var (
	// NotificationsTotal counts outgoing notifications by channel and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Total notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	// AuditDroppedTotal counts audit entries dropped because the queue was full.
	AuditDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_dropped_total",
			Help:      "Audit entries dropped on a full queue",
		},
	)
)
