package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/almadesk/recurring-alerts/internal/detection"
	"github.com/almadesk/recurring-alerts/internal/models"
)

const criticalAlertTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Critical recurring issues</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #d13438; color: white; padding: 20px; border-radius: 5px; }
        .alert { border-left: 4px solid #d13438; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .alert-title { font-weight: bold; margin-bottom: 5px; }
        .alert-meta { color: #666; font-size: 0.9em; }
        .action { margin-top: 8px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Critical recurring issues detected</h1>
        <p>{{len .Alerts}} unacknowledged critical alert(s) need attention</p>
    </div>

    <p>Hello {{.AdminName}},</p>
    <p>The recurring issue detector found the following problems reported again and again by AlmaDesk users.</p>

    {{range .Alerts}}
    <div class="alert">
        <div class="alert-title">{{.Title}}</div>
        <div class="alert-meta">
            {{.Category}} | {{.OccurrenceCount}} tickets from {{.AffectedUsers}} users |
            {{.FirstOccurrence.Format "Jan 2, 2006"}} - {{.LastOccurrence.Format "Jan 2, 2006"}}
        </div>
        {{if .Keywords}}<div class="alert-meta">Keywords: {{join .Keywords ", "}}</div>{{end}}
        <div class="action"><strong>Suggested action:</strong> {{.SuggestedAction}}</div>
    </div>
    {{end}}

    {{if .DashboardURL}}
    <p><a href="{{.DashboardURL}}" target="_blank">Open the recurring issues dashboard</a></p>
    {{end}}

    <hr>
    <p><small>This message was generated automatically by the AlmaDesk recurring issue detector.</small></p>
</body>
</html>
`

var criticalAlertHTML = template.Must(template.New("critical").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(criticalAlertTemplate))

type emailAlert struct {
	models.RecurringAlert
	Category string
}

// BuildCriticalAlertEmail renders the admin notification listing every
// qualifying alert. Category names are rendered through the vocabulary labels.
func BuildCriticalAlertEmail(admin models.User, alerts []models.RecurringAlert, vocab detection.Vocabulary, dashboardURL string) (*models.Email, error) {
	if len(alerts) == 0 {
		return nil, fmt.Errorf("no alerts to notify about")
	}

	rendered := make([]emailAlert, 0, len(alerts))
	for _, a := range alerts {
		rendered = append(rendered, emailAlert{RecurringAlert: a, Category: vocab.CategoryLabel(a.Category)})
	}

	name := admin.Name
	if name == "" {
		name = admin.Email
	}

	data := struct {
		AdminName    string
		Alerts       []emailAlert
		DashboardURL string
	}{name, rendered, dashboardURL}

	var buf bytes.Buffer
	if err := criticalAlertHTML.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to build email HTML: %w", err)
	}

	return &models.Email{
		To:      admin.Email,
		Subject: fmt.Sprintf("[AlmaDesk] %d critical recurring issue(s) detected", len(alerts)),
		HTML:    buf.String(),
		Text:    buildCriticalAlertText(name, rendered, dashboardURL),
	}, nil
}

func buildCriticalAlertText(name string, alerts []emailAlert, dashboardURL string) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Hello %s,\n\n", name))
	text.WriteString(fmt.Sprintf("%d unacknowledged critical recurring issue(s) were detected.\n", len(alerts)))

	for i, a := range alerts {
		text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, a.Title))
		text.WriteString(fmt.Sprintf("   Category: %s | Tickets: %d | Users: %d\n", a.Category, a.OccurrenceCount, a.AffectedUsers))
		text.WriteString(fmt.Sprintf("   Seen: %s - %s\n",
			a.FirstOccurrence.Format("Jan 2, 2006"), a.LastOccurrence.Format("Jan 2, 2006")))
		if len(a.Keywords) > 0 {
			text.WriteString(fmt.Sprintf("   Keywords: %s\n", strings.Join(a.Keywords, ", ")))
		}
		text.WriteString(fmt.Sprintf("   Suggested action: %s\n", a.SuggestedAction))
	}

	if dashboardURL != "" {
		text.WriteString(fmt.Sprintf("\nDashboard: %s\n", dashboardURL))
	}

	text.WriteString("\n---\nThis message was generated automatically by the AlmaDesk recurring issue detector.\n")
	return text.String()
}
