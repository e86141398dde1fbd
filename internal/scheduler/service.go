package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/almadesk/recurring-alerts/internal/analysis"
	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Analyzer runs one analysis pass
type Analyzer interface {
	RunAnalysis(ctx context.Context) ([]models.RecurringAlert, error)
}

// Service handles scheduling of analysis runs
type Service struct {
	config   *config.Config
	analyzer Analyzer
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewService creates a new scheduler service using the configured time zone
func NewService(cfg *config.Config, analyzer Analyzer) (*Service, error) {
	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:   cfg,
		analyzer: analyzer,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(location)),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins the scheduled analysis
func (s *Service) Start() error {
	spec := s.config.ScheduleSpec()
	if _, err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
		return fmt.Errorf("invalid analysis schedule %q: %w", spec, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule (%s), next run at %s",
		s.config.AnalysisSchedule, spec, s.NextRun().Format(time.RFC3339))
	return nil
}

func (s *Service) runScheduled() {
	logrus.Info("Starting scheduled analysis run")

	ctx, cancel := context.WithTimeout(s.ctx, s.config.AnalysisTimeout)
	defer cancel()

	alerts, err := s.analyzer.RunAnalysis(ctx)
	switch {
	case errors.Is(err, analysis.ErrAnalysisInProgress):
		logrus.Warn("Skipping scheduled analysis run, another run is in progress")
	case err != nil:
		logrus.Errorf("Scheduled analysis run failed: %v", err)
	default:
		logrus.Infof("Scheduled analysis run finished with %d alerts", len(alerts))
	}
}

// NextRun returns the next scheduled run, or the zero time before Start
func (s *Service) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops the scheduler, cancels a running analysis and waits for it to return
func (s *Service) Stop() {
	if s.cron != nil {
		s.cancel()
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
