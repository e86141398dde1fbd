// Package analysis runs the recurring issue detection pass: fetch the ticket
// window, cluster it, reconcile patterns into alerts and notify admins.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/almadesk/recurring-alerts/internal/alerts"
	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/almadesk/recurring-alerts/internal/detection"
	"github.com/almadesk/recurring-alerts/internal/metrics"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/notifications"
	"github.com/almadesk/recurring-alerts/internal/sources"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrAnalysisInProgress is returned when a run is requested while another is executing
var ErrAnalysisInProgress = errors.New("analysis already in progress")

// Run results recorded in Metrics and the runs counter
const (
	ResultSuccess   = "success"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

// Dependencies are the collaborators of a Service. Archive may be nil.
type Dependencies struct {
	Tickets  sources.TicketSource
	Alerts   storage.AlertStore
	Users    storage.UserDirectory
	Notifier notifications.NotificationInterface
	Archive  storage.StorageInterface
}

// Service orchestrates analysis runs. At most one run executes at a time.
type Service struct {
	config     *config.Config
	vocab      detection.Vocabulary
	deps       Dependencies
	detector   *detection.Detector
	reconciler *alerts.Reconciler
	running    atomic.Bool
	metrics    *Metrics
	mu         sync.RWMutex
	now        func() time.Time
}

// Metrics holds the outcome of the latest run
type Metrics struct {
	Running             bool      `json:"running"`
	TotalRuns           int       `json:"total_runs"`
	LastRunID           string    `json:"last_run_id"`
	LastRun             time.Time `json:"last_run"`
	LastRunDuration     string    `json:"last_run_duration"`
	LastRunResult       string    `json:"last_run_result"`
	LastError           string    `json:"last_error,omitempty"`
	TicketsAnalyzed     int       `json:"tickets_analyzed"`
	PatternsDetected    int       `json:"patterns_detected"`
	AlertsCreated       int       `json:"alerts_created"`
	AlertsUpdated       int       `json:"alerts_updated"`
	CriticalAlerts      int       `json:"critical_alerts"`
	NotificationsSent   int       `json:"notifications_sent"`
	NotificationsFailed int       `json:"notifications_failed"`
	ErrorCount          int       `json:"error_count"`
}

// NewService creates a new analysis service
func NewService(cfg *config.Config, vocab detection.Vocabulary, deps Dependencies) *Service {
	detector := detection.NewDetector(detection.Config{
		MinOccurrences:           cfg.MinOccurrences,
		TitleSimilarityThreshold: cfg.TitleSimilarityThreshold,
		MaxKeywords:              detection.DefaultConfig().MaxKeywords,
	}, vocab)

	reconciler := alerts.NewReconciler(deps.Alerts, vocab, alerts.ReconcilerConfig{
		MinOccurrences:       cfg.MinOccurrences,
		MembershipConfidence: cfg.MembershipConfidence,
	})

	return &Service{
		config:     cfg,
		vocab:      vocab,
		deps:       deps,
		detector:   detector,
		reconciler: reconciler,
		metrics:    &Metrics{},
		now:        time.Now,
	}
}

// IsRunning reports whether a run currently holds the guard
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// RunAnalysis performs one detection pass over the configured ticket window and
// returns the alerts it created or updated. Cancelling ctx stops the run before
// the next pattern is reconciled; the alerts reconciled so far are returned with
// the error.
func (s *Service) RunAnalysis(ctx context.Context) ([]models.RecurringAlert, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.AnalysisRejectedTotal.Inc()
		return nil, ErrAnalysisInProgress
	}
	defer s.running.Store(false)

	metrics.AnalysisInProgress.Set(1)
	defer metrics.AnalysisInProgress.Set(0)

	start := s.now()
	report := &models.RunReport{
		RunID:       uuid.NewString(),
		StartedAt:   start.UTC(),
		WindowStart: start.Add(-s.config.AnalysisWindow()).UTC(),
	}
	logrus.Infof("Starting analysis run %s (window since %s)", report.RunID, report.WindowStart.Format(time.RFC3339))

	tickets, err := s.deps.Tickets.FetchTickets(ctx, report.WindowStart, s.config.ExcludedTicketStatuses)
	if err != nil {
		err = fmt.Errorf("fetch tickets from %s: %w", s.deps.Tickets.GetName(), err)
		s.finish(report, ResultFailed, err)
		return nil, err
	}
	report.TicketsAnalyzed = len(tickets)
	metrics.TicketsAnalyzed.Set(float64(len(tickets)))
	logrus.Infof("Fetched %d tickets from %s", len(tickets), s.deps.Tickets.GetName())

	patterns := s.detector.Detect(tickets)
	report.PatternsDetected = len(patterns)
	for _, p := range patterns {
		metrics.PatternsDetectedTotal.WithLabelValues(string(p.Category)).Inc()
	}
	logrus.Infof("Detected %d recurring patterns", len(patterns))

	results := make([]models.RecurringAlert, 0, len(patterns))
	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("analysis run %s cancelled after %d of %d patterns: %w", report.RunID, len(results), len(patterns), err)
			report.Alerts = results
			s.finish(report, ResultCancelled, err)
			return results, err
		}

		alert, created, err := s.reconciler.Reconcile(ctx, p)
		if err != nil {
			report.ReconcileErrors++
			logrus.Errorf("Failed to reconcile pattern %q (%s): %v", p.RepresentativeTitle, p.Category, err)
			continue
		}

		if created {
			report.AlertsCreated++
		} else {
			report.AlertsUpdated++
		}
		results = append(results, *alert)
	}
	logrus.Infof("Reconciled alerts: %d created, %d updated, %d failed",
		report.AlertsCreated, report.AlertsUpdated, report.ReconcileErrors)

	critical := criticalUnacknowledged(results)
	report.CriticalAlerts = len(critical)
	report.NotificationsSent, report.NotificationsFailed = s.notifyAdmins(ctx, critical)

	report.Alerts = bySeverity(results)
	s.finish(report, ResultSuccess, nil)

	s.archiveReport(ctx, report)
	if err := s.deps.Notifier.SendReport(ctx, report); err != nil {
		logrus.Errorf("Failed to send run summary: %v", err)
	}

	return results, nil
}

// criticalUnacknowledged selects the alerts that warrant an admin email
func criticalUnacknowledged(list []models.RecurringAlert) []models.RecurringAlert {
	var out []models.RecurringAlert
	for _, a := range list {
		if a.Severity == models.SeverityCritical && a.AcknowledgedAt == nil {
			out = append(out, a)
		}
	}
	return out
}

func bySeverity(list []models.RecurringAlert) []models.RecurringAlert {
	sorted := append([]models.RecurringAlert(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})
	return sorted
}

// notifyAdmins sends one email per admin listing every critical alert. Failures
// are logged and counted, never returned.
func (s *Service) notifyAdmins(ctx context.Context, critical []models.RecurringAlert) (sent, failed int) {
	if len(critical) == 0 {
		return 0, 0
	}

	admins, err := s.deps.Users.ListAdmins(ctx)
	if err != nil {
		logrus.Errorf("Failed to load admins for critical alert notification: %v", err)
		return 0, 0
	}
	if len(admins) == 0 {
		logrus.Warnf("%d critical alerts but no admin to notify", len(critical))
		return 0, 0
	}

	for _, admin := range admins {
		email, err := notifications.BuildCriticalAlertEmail(admin, critical, s.vocab, s.config.DashboardURL)
		if err != nil {
			failed++
			logrus.Errorf("Failed to build critical alert email for %s: %v", admin.Email, err)
			continue
		}

		if err := s.deps.Notifier.SendEmail(ctx, email); err != nil {
			failed++
			logrus.Errorf("Failed to notify %s about critical alerts: %v", admin.Email, err)
			continue
		}
		sent++
	}

	logrus.Infof("Critical alert notifications: %d sent, %d failed", sent, failed)
	return sent, failed
}

func (s *Service) archiveReport(ctx context.Context, report *models.RunReport) {
	if s.deps.Archive == nil {
		return
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logrus.Errorf("Failed to marshal run report: %v", err)
		return
	}

	if err := s.deps.Archive.Store(ctx, ReportPath(report), data); err != nil {
		logrus.Errorf("Failed to archive run report %s: %v", report.RunID, err)
	}
}

func (s *Service) finish(report *models.RunReport, result string, runErr error) {
	duration := s.now().Sub(report.StartedAt)
	report.Duration = duration.String()

	metrics.AnalysisRunsTotal.WithLabelValues(result).Inc()
	metrics.AnalysisDuration.Observe(duration.Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalRuns++
	s.metrics.LastRunID = report.RunID
	s.metrics.LastRun = report.StartedAt
	s.metrics.LastRunDuration = report.Duration
	s.metrics.LastRunResult = result
	s.metrics.LastError = ""
	s.metrics.TicketsAnalyzed = report.TicketsAnalyzed
	s.metrics.PatternsDetected = report.PatternsDetected
	s.metrics.AlertsCreated = report.AlertsCreated
	s.metrics.AlertsUpdated = report.AlertsUpdated
	s.metrics.CriticalAlerts = report.CriticalAlerts
	s.metrics.NotificationsSent = report.NotificationsSent
	s.metrics.NotificationsFailed = report.NotificationsFailed
	s.metrics.ErrorCount = report.ReconcileErrors + report.NotificationsFailed

	if runErr != nil {
		s.metrics.ErrorCount++
		s.metrics.LastError = runErr.Error()
		logrus.Errorf("Analysis run %s %s after %s: %v", report.RunID, result, report.Duration, runErr)
		return
	}

	logrus.Infof("Analysis run %s completed in %s", report.RunID, report.Duration)
}

// Snapshot returns a copy of the current metrics
func (s *Service) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := *s.metrics
	m.Running = s.IsRunning()
	return m
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	data, _ := json.MarshalIndent(s.Snapshot(), "", "  ")
	return string(data)
}
