// Package alerts turns detected patterns into persisted recurring alerts and
// exposes the alert lifecycle operations.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/almadesk/recurring-alerts/internal/detection"
	"github.com/almadesk/recurring-alerts/internal/metrics"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/sirupsen/logrus"
)

// DefaultMembershipConfidence is stored on every membership the reconciler writes
const DefaultMembershipConfidence = 0.9

// ReconcilerConfig holds the reconciliation settings
type ReconcilerConfig struct {
	MinOccurrences       int
	MembershipConfidence float64
}

// Reconciler merges patterns into the alert store, keeping at most one open
// alert per (pattern, category).
type Reconciler struct {
	store  storage.AlertStore
	vocab  detection.Vocabulary
	config ReconcilerConfig
	now    func() time.Time
}

// NewReconciler creates a reconciler. Zero settings fall back to defaults.
func NewReconciler(store storage.AlertStore, vocab detection.Vocabulary, config ReconcilerConfig) *Reconciler {
	if config.MinOccurrences < 1 {
		config.MinOccurrences = detection.DefaultConfig().MinOccurrences
	}
	if config.MembershipConfidence <= 0 || config.MembershipConfidence > 1 {
		config.MembershipConfidence = DefaultMembershipConfidence
	}

	return &Reconciler{
		store:  store,
		vocab:  vocab,
		config: config,
		now:    time.Now,
	}
}

// Reconcile updates the open alert for the pattern's key or creates a new ACTIVE
// one. created reports which of the two happened.
func (r *Reconciler) Reconcile(ctx context.Context, p models.Pattern) (alert *models.RecurringAlert, created bool, err error) {
	if p.OccurrenceCount < r.config.MinOccurrences {
		return nil, false, fmt.Errorf("%w: %q has %d", ErrBelowMinimum, p.RepresentativeTitle, p.OccurrenceCount)
	}

	memberships := r.memberships(p)

	existing, err := r.store.FindOpenAlert(ctx, p.RepresentativeTitle, p.Category)
	switch {
	case err == nil:
		existing.OccurrenceCount = p.OccurrenceCount
		existing.AffectedUsers = p.AffectedUsers
		existing.LastOccurrence = p.LastOccurrence
		existing.Severity = p.Severity
		existing.Keywords = p.Keywords
		existing.SuggestedAction = p.SuggestedAction

		err = r.store.UpdateAlertMetrics(ctx, existing, memberships)
		if err == nil {
			metrics.AlertsReconciledTotal.WithLabelValues("updated").Inc()
			logrus.Debugf("Updated alert %d (%s) to %d occurrences", existing.ID, existing.Severity, existing.OccurrenceCount)
			return existing, false, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			metrics.AlertsReconciledTotal.WithLabelValues("error").Inc()
			return nil, false, fmt.Errorf("update alert %d: %w", existing.ID, err)
		}

		// Closed since it was found, so the key is free again.
		logrus.Infof("Alert %d was closed during reconciliation, opening a new one", existing.ID)
		return r.create(ctx, p, memberships)

	case errors.Is(err, storage.ErrNotFound):
		return r.create(ctx, p, memberships)

	default:
		metrics.AlertsReconciledTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("find open alert for %q: %w", p.RepresentativeTitle, err)
	}
}

func (r *Reconciler) create(ctx context.Context, p models.Pattern, memberships []models.AlertTicketMembership) (*models.RecurringAlert, bool, error) {
	alert := &models.RecurringAlert{
		Pattern:         p.RepresentativeTitle,
		Category:        p.Category,
		Title:           r.vocab.CategoryLabel(p.Category) + ": " + p.RepresentativeTitle,
		OccurrenceCount: p.OccurrenceCount,
		AffectedUsers:   p.AffectedUsers,
		FirstOccurrence: p.FirstOccurrence,
		LastOccurrence:  p.LastOccurrence,
		Severity:        p.Severity,
		Keywords:        p.Keywords,
		SuggestedAction: p.SuggestedAction,
		Status:          models.AlertActive,
	}

	if err := r.store.CreateAlert(ctx, alert, memberships); err != nil {
		metrics.AlertsReconciledTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("create alert for %q: %w", p.RepresentativeTitle, err)
	}

	metrics.AlertsReconciledTotal.WithLabelValues("created").Inc()
	logrus.Infof("Created %s alert %d: %s", alert.Severity, alert.ID, alert.Title)
	return alert, true, nil
}

func (r *Reconciler) memberships(p models.Pattern) []models.AlertTicketMembership {
	addedAt := r.now().UTC()
	list := make([]models.AlertTicketMembership, 0, len(p.Members))
	for _, t := range p.Members {
		list = append(list, models.AlertTicketMembership{
			TicketID:   t.ID,
			Confidence: r.config.MembershipConfidence,
			AddedAt:    addedAt,
		})
	}
	return list
}
