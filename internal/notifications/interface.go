package notifications

import (
	"context"

	"github.com/almadesk/recurring-alerts/internal/models"
	"gopkg.in/gomail.v2"
)

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	// SendEmail delivers one message. Callers treat failures as best-effort.
	SendEmail(ctx context.Context, email *models.Email) error
	// SendReport publishes the run summary to the configured chat channel, if any.
	SendReport(ctx context.Context, report *models.RunReport) error
}

// Mailer sends composed messages. *gomail.Dialer implements it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}
