package alerts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/almadesk/recurring-alerts/internal/audit"
	"github.com/almadesk/recurring-alerts/internal/metrics"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/sirupsen/logrus"
)

// Audit actions recorded for lifecycle transitions
const (
	ActionAcknowledge = "ACKNOWLEDGE_RECURRING_ALERT"
	ActionResolve     = "RESOLVE_RECURRING_ALERT"
	ActionDismiss     = "DISMISS_RECURRING_ALERT"
)

// AuditLogger receives lifecycle audit entries. Implementations must not block.
type AuditLogger interface {
	LogAudit(entry models.AuditEntry)
}

// Service implements the alert lifecycle operations
type Service struct {
	store storage.AlertStore
	audit AuditLogger
	now   func() time.Time
}

// NewService creates a lifecycle service. auditLogger may be nil.
func NewService(store storage.AlertStore, auditLogger AuditLogger) *Service {
	return &Service{
		store: store,
		audit: auditLogger,
		now:   time.Now,
	}
}

// GetActiveAlerts lists alerts ordered by severity then most recent occurrence.
// Without a status filter only ACTIVE and ACKNOWLEDGED alerts are returned.
func (s *Service) GetActiveAlerts(ctx context.Context, filter models.AlertFilter) ([]models.RecurringAlert, error) {
	if len(filter.Statuses) == 0 {
		filter.Statuses = models.OpenAlertStatuses
	}
	return s.store.ListAlerts(ctx, filter)
}

// GetAlert returns one alert by id
func (s *Service) GetAlert(ctx context.Context, id int64) (*models.RecurringAlert, error) {
	return s.store.GetAlert(ctx, id)
}

// GetAlertStats aggregates the alert store
func (s *Service) GetAlertStats(ctx context.Context) (*models.AlertStats, error) {
	return s.store.AlertStats(ctx)
}

// AcknowledgeAlert marks the alert ACKNOWLEDGED by userID. Re-acknowledging
// replaces the acknowledger.
func (s *Service) AcknowledgeAlert(ctx context.Context, id, userID int64, notes string) (*models.RecurringAlert, error) {
	return s.transition(ctx, id, models.AlertAcknowledged, ActionAcknowledge, notes, func(a *models.RecurringAlert, now time.Time) {
		a.AcknowledgedByID = &userID
		a.AcknowledgedAt = &now
	})
}

// ResolveAlert marks the alert RESOLVED. Callers are expected to require notes.
func (s *Service) ResolveAlert(ctx context.Context, id int64, notes string) (*models.RecurringAlert, error) {
	return s.transition(ctx, id, models.AlertResolved, ActionResolve, notes, func(a *models.RecurringAlert, now time.Time) {
		a.ResolvedAt = &now
	})
}

// DismissAlert marks the alert DISMISSED
func (s *Service) DismissAlert(ctx context.Context, id int64, notes string) (*models.RecurringAlert, error) {
	return s.transition(ctx, id, models.AlertDismissed, ActionDismiss, notes, nil)
}

func (s *Service) transition(ctx context.Context, id int64, to models.AlertStatus, action, notes string,
	apply func(a *models.RecurringAlert, now time.Time)) (*models.RecurringAlert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	from := alert.Status
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: alert %d is %s", ErrInvalidTransition, id, from)
	}

	now := s.now().UTC()
	alert.Status = to
	if apply != nil {
		apply(alert, now)
	}
	if notes != "" {
		alert.Notes = &notes
	}

	if err := s.store.UpdateAlertLifecycle(ctx, alert, from); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("%w: alert %d changed from %s concurrently", ErrInvalidTransition, id, from)
		}
		return nil, err
	}

	metrics.AlertTransitionsTotal.WithLabelValues(string(to)).Inc()
	logrus.Infof("Alert %d moved from %s to %s", id, from, to)

	s.logAudit(ctx, alert, action, from, now)
	return alert, nil
}

func (s *Service) logAudit(ctx context.Context, alert *models.RecurringAlert, action string, from models.AlertStatus, now time.Time) {
	if s.audit == nil {
		return
	}

	meta := audit.RequestMetaFrom(ctx)
	userID := meta.UserID
	if userID == nil && alert.Status == models.AlertAcknowledged {
		userID = alert.AcknowledgedByID
	}

	details := map[string]string{
		"previous_status": string(from),
		"status":          string(alert.Status),
		"severity":        string(alert.Severity),
		"occurrences":     strconv.Itoa(alert.OccurrenceCount),
	}
	if alert.Notes != nil {
		details["notes"] = *alert.Notes
	}

	s.audit.LogAudit(models.AuditEntry{
		Action:     action,
		EntityType: audit.EntityRecurringAlert,
		EntityID:   alert.ID,
		UserID:     userID,
		Details:    details,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		CreatedAt:  now,
	})
}

// CanTransition reports whether an alert in status from may move to status to.
// RESOLVED and DISMISSED are terminal.
func CanTransition(from, to models.AlertStatus) bool {
	if !from.IsOpen() {
		return false
	}
	switch to {
	case models.AlertAcknowledged, models.AlertResolved, models.AlertDismissed:
		return true
	}
	return false
}
