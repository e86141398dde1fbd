package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/almadesk/recurring-alerts/internal/analysis"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one analysis now",
	Long: `Run one recurring issue analysis immediately, the same pass the detector
runs on its schedule. Critical alerts are emailed to admins and the run
report is archived when storage is configured.

Interrupting the command cancels the run before the next pattern is reconciled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		ctx, cancel := context.WithTimeout(ctx, a.Config.AnalysisTimeout)
		defer cancel()

		results, runErr := a.Analysis.RunAnalysis(ctx)

		if output == "json" {
			if err := printJSON(cmd.OutOrStdout(), a.Analysis.Snapshot()); err != nil {
				return err
			}
		} else {
			printRunSummary(cmd.OutOrStdout(), a.Analysis.Snapshot(), results)
		}
		return runErr
	},
}

// runsCmd groups the archived run report commands
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Archived run reports",
	Long: `Browse the run reports the detector archives to Azure Blob Storage.

Requires AZURE_STORAGE_ACCOUNT.

Examples:
  alertctl runs list
  alertctl runs show runs/2026/03/10/5f0c1d7e-2b8e-4f5b-9d0a-3f1c2b7a9e61.json`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived run reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if a.Archive == nil {
			return fmt.Errorf("no run report archive configured (set AZURE_STORAGE_ACCOUNT)")
		}

		paths, err := analysis.ListReports(ctx, a.Archive)
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), paths)
		}
		if len(paths) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No run reports found.")
			return nil
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show PATH",
	Short: "Show an archived run report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if a.Archive == nil {
			return fmt.Errorf("no run report archive configured (set AZURE_STORAGE_ACCOUNT)")
		}

		report, err := analysis.LoadReport(ctx, a.Archive, args[0])
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runCmd, runsCmd)
}

func printRunSummary(w io.Writer, m analysis.Metrics, results []models.RecurringAlert) {
	fmt.Fprintf(w, "\nRun %s: %s in %s\n", m.LastRunID, m.LastRunResult, m.LastRunDuration)
	if m.LastError != "" {
		fmt.Fprintf(w, "  Error:              %s\n", m.LastError)
	}
	fmt.Fprintf(w, "  Tickets analyzed:   %d\n", m.TicketsAnalyzed)
	fmt.Fprintf(w, "  Patterns detected:  %d\n", m.PatternsDetected)
	fmt.Fprintf(w, "  Alerts created:     %d\n", m.AlertsCreated)
	fmt.Fprintf(w, "  Alerts updated:     %d\n", m.AlertsUpdated)
	fmt.Fprintf(w, "  Critical alerts:    %d\n", m.CriticalAlerts)
	fmt.Fprintf(w, "  Emails sent/failed: %d/%d\n", m.NotificationsSent, m.NotificationsFailed)

	if len(results) > 0 {
		printAlertTable(w, results)
	}
}

func printReport(w io.Writer, r *models.RunReport) {
	fmt.Fprintf(w, "\nRun %s\n", r.RunID)
	fmt.Fprintf(w, "  Started:            %s (%s)\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Duration)
	fmt.Fprintf(w, "  Window start:       %s\n", r.WindowStart.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Tickets analyzed:   %d\n", r.TicketsAnalyzed)
	fmt.Fprintf(w, "  Patterns detected:  %d\n", r.PatternsDetected)
	fmt.Fprintf(w, "  Alerts created:     %d\n", r.AlertsCreated)
	fmt.Fprintf(w, "  Alerts updated:     %d\n", r.AlertsUpdated)
	fmt.Fprintf(w, "  Reconcile errors:   %d\n", r.ReconcileErrors)
	fmt.Fprintf(w, "  Critical alerts:    %d\n", r.CriticalAlerts)
	fmt.Fprintf(w, "  Emails sent/failed: %d/%d\n", r.NotificationsSent, r.NotificationsFailed)

	if len(r.Alerts) > 0 {
		printAlertTable(w, r.Alerts)
	} else {
		fmt.Fprintln(w, "\nNo alerts in this run.")
	}
}
