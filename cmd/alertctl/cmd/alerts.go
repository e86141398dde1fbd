package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/almadesk/recurring-alerts/internal/alerts"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/spf13/cobra"
)

var (
	listStatuses []string
	listSeverity string
	listCategory string
	listID       int64

	ackUser      int64
	ackNotes     string
	resolveNotes string
	dismissNotes string
)

// listCmd lists recurring alerts
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurring alerts",
	Long: `List recurring alerts, most severe and most recent first.

Without --status only open alerts (ACTIVE, ACKNOWLEDGED) are shown.

Examples:
  alertctl list
  alertctl list --status RESOLVED --category NETWORK
  alertctl list --severity CRITICAL -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := buildFilter(listStatuses, listSeverity, listCategory, listID)
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		list, err := a.Alerts.GetActiveAlerts(ctx, filter)
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printAlertTable(cmd.OutOrStdout(), list)
		return nil
	},
}

// showCmd prints one alert with its member tickets
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show alert details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAlertID(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		alert, err := a.Alerts.GetAlert(ctx, id)
		if err != nil {
			return describeError(id, err)
		}
		members, err := a.DB.ListMemberships(ctx, id)
		if err != nil {
			return fmt.Errorf("list memberships: %w", err)
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), struct {
				*models.RecurringAlert
				Memberships []models.AlertTicketMembership `json:"memberships"`
			}{alert, members})
		}
		printAlertDetails(cmd.OutOrStdout(), alert, members)
		return nil
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack ID",
	Short: "Acknowledge an alert",
	Long: `Acknowledge an open alert on behalf of an AlmaDesk user.

Acknowledging again replaces the acknowledger. Empty notes keep the existing notes.

Example:
  alertctl ack 17 --user 42 --notes "Network team is on it"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAlertID(args[0])
		if err != nil {
			return err
		}
		if ackUser <= 0 {
			return fmt.Errorf("--user is required")
		}

		return runTransition(cmd, id, &ackUser, func(ctx context.Context, svc *alerts.Service) (*models.RecurringAlert, error) {
			return svc.AcknowledgeAlert(ctx, id, ackUser, ackNotes)
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Resolve an alert",
	Long: `Mark an alert as resolved. Resolution notes are required.

Example:
  alertctl resolve 17 --notes "Replaced the VPN concentrator"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAlertID(args[0])
		if err != nil {
			return err
		}
		if strings.TrimSpace(resolveNotes) == "" {
			return fmt.Errorf("--notes is required")
		}

		return runTransition(cmd, id, nil, func(ctx context.Context, svc *alerts.Service) (*models.RecurringAlert, error) {
			return svc.ResolveAlert(ctx, id, resolveNotes)
		})
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss ID",
	Short: "Dismiss an alert as a false positive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAlertID(args[0])
		if err != nil {
			return err
		}

		return runTransition(cmd, id, nil, func(ctx context.Context, svc *alerts.Service) (*models.RecurringAlert, error) {
			return svc.DismissAlert(ctx, id, dismissNotes)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alert statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		stats, err := a.Alerts.GetAlertStats(ctx)
		if err != nil {
			return fmt.Errorf("alert stats: %w", err)
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), stats)
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	listCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "alert statuses (ACTIVE, ACKNOWLEDGED, RESOLVED, DISMISSED)")
	listCmd.Flags().StringVar(&listSeverity, "severity", "", "severity (LOW, MEDIUM, HIGH, CRITICAL)")
	listCmd.Flags().StringVar(&listCategory, "category", "", "ticket category")
	listCmd.Flags().Int64Var(&listID, "id", 0, "alert id")

	ackCmd.Flags().Int64Var(&ackUser, "user", 0, "AlmaDesk user id of the acknowledger (required)")
	ackCmd.Flags().StringVar(&ackNotes, "notes", "", "acknowledgement notes")
	resolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "resolution notes (required)")
	dismissCmd.Flags().StringVar(&dismissNotes, "notes", "", "reason for dismissal")

	rootCmd.AddCommand(listCmd, showCmd, ackCmd, resolveCmd, dismissCmd, statsCmd)
}

func runTransition(cmd *cobra.Command, id int64, userID *int64,
	apply func(ctx context.Context, svc *alerts.Service) (*models.RecurringAlert, error)) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	alert, err := apply(withOperator(ctx, userID), a.Alerts)
	if err != nil {
		return describeError(id, err)
	}

	if output == "json" {
		return printJSON(cmd.OutOrStdout(), alert)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Alert %d is now %s\n", alert.ID, alert.Status)
	return nil
}

func buildFilter(statuses []string, severity, category string, id int64) (models.AlertFilter, error) {
	filter := models.AlertFilter{ID: id}

	for _, s := range statuses {
		status := models.AlertStatus(strings.ToUpper(strings.TrimSpace(s)))
		switch status {
		case models.AlertActive, models.AlertAcknowledged, models.AlertResolved, models.AlertDismissed:
			filter.Statuses = append(filter.Statuses, status)
		default:
			return filter, fmt.Errorf("invalid status: %s", s)
		}
	}

	if severity != "" {
		filter.Severity = models.Severity(strings.ToUpper(severity))
		if filter.Severity.Rank() == 0 {
			return filter, fmt.Errorf("invalid severity: %s", severity)
		}
	}
	if category != "" {
		filter.Category = models.TicketCategory(strings.ToUpper(category))
	}

	return filter, nil
}

func parseAlertID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid alert id: %s", arg)
	}
	return id, nil
}

func describeError(id int64, err error) error {
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		return fmt.Errorf("alert %d not found", id)
	case errors.Is(err, alerts.ErrInvalidTransition):
		return fmt.Errorf("alert %d: %w", id, err)
	}
	return err
}

func printAlertTable(w io.Writer, list []models.RecurringAlert) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No alerts found.")
		return
	}

	fmt.Fprintf(w, "\n%-6s  %-8s  %-12s  %-8s  %5s  %5s  %-16s  %s\n",
		"ID", "SEVERITY", "STATUS", "CATEGORY", "COUNT", "USERS", "LAST SEEN", "TITLE")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, a := range list {
		fmt.Fprintf(w, "%-6d  %-8s  %-12s  %-8s  %5d  %5d  %-16s  %s\n",
			a.ID,
			a.Severity,
			a.Status,
			a.Category,
			a.OccurrenceCount,
			a.AffectedUsers,
			a.LastOccurrence.Local().Format("2006-01-02 15:04"),
			truncate(a.Title, 40),
		)
	}
	fmt.Fprintf(w, "\nTotal: %d alert(s)\n", len(list))
}

func printAlertDetails(w io.Writer, a *models.RecurringAlert, members []models.AlertTicketMembership) {
	fmt.Fprintf(w, "\nAlert %d: %s\n", a.ID, a.Title)
	fmt.Fprintf(w, "  Status:           %s\n", a.Status)
	fmt.Fprintf(w, "  Severity:         %s\n", a.Severity)
	fmt.Fprintf(w, "  Category:         %s\n", a.Category)
	fmt.Fprintf(w, "  Pattern:          %s\n", a.Pattern)
	fmt.Fprintf(w, "  Occurrences:      %d (%d users)\n", a.OccurrenceCount, a.AffectedUsers)
	fmt.Fprintf(w, "  First seen:       %s\n", a.FirstOccurrence.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Last seen:        %s\n", a.LastOccurrence.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Keywords:         %s\n", strings.Join(a.Keywords, ", "))
	fmt.Fprintf(w, "  Suggested action: %s\n", a.SuggestedAction)

	if a.AcknowledgedAt != nil {
		by := "unknown"
		if a.AcknowledgedByID != nil {
			by = strconv.FormatInt(*a.AcknowledgedByID, 10)
		}
		fmt.Fprintf(w, "  Acknowledged:     %s by user %s\n", a.AcknowledgedAt.Local().Format("2006-01-02 15:04"), by)
	}
	if a.ResolvedAt != nil {
		fmt.Fprintf(w, "  Resolved:         %s\n", a.ResolvedAt.Local().Format("2006-01-02 15:04"))
	}
	if a.Notes != nil {
		fmt.Fprintf(w, "  Notes:            %s\n", *a.Notes)
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, "#"+strconv.FormatInt(m.TicketID, 10))
	}
	fmt.Fprintf(w, "  Tickets (%d):     %s\n", len(members), strings.Join(ids, " "))
}

func printStats(w io.Writer, stats *models.AlertStats) {
	fmt.Fprintf(w, "\nTotal alerts: %d\n", stats.Total)
	fmt.Fprintf(w, "  Active:       %d\n", stats.Active)
	fmt.Fprintf(w, "  Acknowledged: %d\n", stats.Acknowledged)
	fmt.Fprintf(w, "  Resolved:     %d\n", stats.Resolved)
	fmt.Fprintf(w, "  Dismissed:    %d\n", stats.Dismissed)

	fmt.Fprintln(w, "\nOpen alerts by severity:")
	for _, s := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		fmt.Fprintf(w, "  %-10s %d\n", s, stats.BySeverity[s])
	}

	fmt.Fprintln(w, "\nOpen alerts by category:")
	categories := make([]string, 0, len(stats.ByCategory))
	for c, n := range stats.ByCategory {
		if n > 0 {
			categories = append(categories, string(c))
		}
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(w, "  %-10s %d\n", c, stats.ByCategory[models.TicketCategory(c)])
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-2]) + ".."
}
