// Package app wires the detector's components from a Config. Both the service
// and the operator CLI build on it.
package app

import (
	"context"
	"fmt"

	"github.com/almadesk/recurring-alerts/internal/alerts"
	"github.com/almadesk/recurring-alerts/internal/analysis"
	"github.com/almadesk/recurring-alerts/internal/audit"
	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/almadesk/recurring-alerts/internal/detection"
	"github.com/almadesk/recurring-alerts/internal/notifications"
	"github.com/almadesk/recurring-alerts/internal/sources"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/sirupsen/logrus"
)

// App holds the wired components
type App struct {
	Config     *config.Config
	Vocabulary detection.Vocabulary
	DB         storage.Database
	Archive    storage.StorageInterface // nil when no storage account is configured
	Notifier   *notifications.Service
	Audit      *audit.Logger
	Analysis   *analysis.Service
	Alerts     *alerts.Service
}

// New connects to the database and builds every service
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	vocab, err := detection.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.DatabaseDriver,
		PostgresURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var archive storage.StorageInterface
	if cfg.StorageAccount != "" {
		azureStorage, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		archive = azureStorage
	} else {
		logrus.Info("No Azure storage account configured, run reports will not be archived")
	}

	var tickets sources.TicketSource = db
	if cfg.TicketSource == "api" {
		tickets = sources.NewAPISource(cfg.TicketAPIURL, cfg.TicketAPIToken)
	}
	logrus.Infof("Reading tickets from %s", tickets.GetName())

	notifier := notifications.NewService(cfg)
	auditLogger := audit.NewLogger(db, 0)

	return &App{
		Config:     cfg,
		Vocabulary: vocab,
		DB:         db,
		Archive:    archive,
		Notifier:   notifier,
		Audit:      auditLogger,
		Analysis: analysis.NewService(cfg, vocab, analysis.Dependencies{
			Tickets:  tickets,
			Alerts:   db,
			Users:    db,
			Notifier: notifier,
			Archive:  archive,
		}),
		Alerts: alerts.NewService(db, auditLogger),
	}, nil
}

// Close flushes pending audit entries and closes the database
func (a *App) Close(ctx context.Context) {
	if err := a.Audit.Close(ctx); err != nil {
		logrus.Errorf("Failed to flush audit log: %v", err)
	}
	if err := a.DB.Close(); err != nil {
		logrus.Errorf("Failed to close database: %v", err)
	}
}
