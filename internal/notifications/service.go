package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/almadesk/recurring-alerts/internal/metrics"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

// ErrEmailDisabled is returned by SendEmail when no SMTP host is configured
var ErrEmailDisabled = errors.New("email notifications are not configured")

// Service handles sending notifications via SMTP and Microsoft Teams
type Service struct {
	config  *config.Config
	client  *resty.Client
	mailer  Mailer
	limiter *rate.Limiter
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// Ensure the gomail dialer satisfies Mailer
var _ Mailer = (*gomail.Dialer)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config:  cfg,
		client:  resty.New().SetTimeout(30 * time.Second),
		limiter: newLimiter(cfg.EmailRatePerSecond),
	}

	if cfg.SMTPHost != "" {
		s.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}

	return s
}

// WithMailer replaces the SMTP dialer
func (s *Service) WithMailer(m Mailer) *Service {
	s.mailer = m
	return s
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (s *Service) sender() string {
	if s.config.SMTPFrom != "" {
		return s.config.SMTPFrom
	}
	return s.config.SMTPUsername
}

// SendEmail sends one message through SMTP, waiting for the send throttle first
func (s *Service) SendEmail(ctx context.Context, email *models.Email) error {
	if s.mailer == nil {
		return ErrEmailDisabled
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email throttle: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.sender())
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	if email.Text != "" {
		m.SetBody("text/plain", email.Text)
		m.AddAlternative("text/html", email.HTML)
	} else {
		m.SetBody("text/html", email.HTML)
	}

	if err := s.mailer.DialAndSend(m); err != nil {
		metrics.NotificationsTotal.WithLabelValues("email", "failed").Inc()
		return fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}

	metrics.NotificationsTotal.WithLabelValues("email", "sent").Inc()
	logrus.Debugf("Sent email %q to %s", email.Subject, email.To)
	return nil
}

// SendReport posts the run summary card to Teams when a webhook is configured
func (s *Service) SendReport(ctx context.Context, report *models.RunReport) error {
	if s.config.TeamsWebhookURL == "" {
		logrus.Debug("Teams webhook not configured, skipping run summary")
		return nil
	}

	message := s.buildTeamsMessage(report)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("teams", "failed").Inc()
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		metrics.NotificationsTotal.WithLabelValues("teams", "failed").Inc()
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	metrics.NotificationsTotal.WithLabelValues("teams", "sent").Inc()
	logrus.Info("Successfully sent run summary to Teams")
	return nil
}

func (s *Service) buildTeamsMessage(report *models.RunReport) *TeamsMessage {
	color := "0078D4"
	if report.CriticalAlerts > 0 {
		color = "D13438"
	}

	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: color,
		Title:      "AlmaDesk Recurring Issues - Analysis Run",
		Text: fmt.Sprintf("Analyzed %d tickets since %s and found %d recurring patterns",
			report.TicketsAnalyzed, report.WindowStart.Format("2006-01-02"), report.PatternsDetected),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle:    "Summary",
		ActivitySubtitle: report.RunID,
		Facts: []TeamsFact{
			{Name: "Started", Value: report.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
			{Name: "Duration", Value: report.Duration},
			{Name: "New Alerts", Value: fmt.Sprintf("%d", report.AlertsCreated)},
			{Name: "Updated Alerts", Value: fmt.Sprintf("%d", report.AlertsUpdated)},
			{Name: "Critical Unacknowledged", Value: fmt.Sprintf("%d", report.CriticalAlerts)},
			{Name: "Emails Sent", Value: fmt.Sprintf("%d (%d failed)", report.NotificationsSent, report.NotificationsFailed)},
		},
		Markdown: true,
	})

	if len(report.Alerts) > 0 {
		var lines []string
		limit := 5
		if len(report.Alerts) < limit {
			limit = len(report.Alerts)
		}

		for i := 0; i < limit; i++ {
			alert := report.Alerts[i]
			lines = append(lines, fmt.Sprintf("**%s** - %s (%d tickets, %d users)",
				alert.Severity, alert.Title, alert.OccurrenceCount, alert.AffectedUsers))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Alerts",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}
