package cmd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/almadesk/recurring-alerts/internal/alerts"
	"github.com/almadesk/recurring-alerts/internal/audit"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB points the CLI at a fresh SQLite file holding one active alert
func setupTestDB(t *testing.T) (string, *models.RecurringAlert) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alertctl.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("AZURE_STORAGE_ACCOUNT", "")

	ctx := context.Background()
	db, err := storage.NewSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureSchema(ctx))

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	alert := &models.RecurringAlert{
		Pattern:         "VPN nie działa",
		Category:        models.CategoryNetwork,
		Title:           "Sieć: VPN nie działa",
		OccurrenceCount: 6,
		AffectedUsers:   4,
		FirstOccurrence: now.Add(-48 * time.Hour),
		LastOccurrence:  now,
		Severity:        models.SeverityHigh,
		Keywords:        []string{"vpn", "działa"},
		SuggestedAction: "Diagnose the network infrastructure",
		Status:          models.AlertActive,
	}
	require.NoError(t, db.CreateAlert(ctx, alert, []models.AlertTicketMembership{
		{TicketID: 11, Confidence: 0.9, AddedAt: now},
		{TicketID: 12, Confidence: 0.9, AddedAt: now},
	}))

	return path, alert
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	output, verbose = "table", false
	listStatuses, listSeverity, listCategory, listID = nil, "", "", 0
	ackUser, ackNotes, resolveNotes, dismissNotes = 0, "", "", ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestListCommand(t *testing.T) {
	_, alert := setupTestDB(t)

	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Sieć: VPN nie działa")
	assert.Contains(t, out, "Total: 1 alert(s)")

	out, err = execute(t, "list", "--status", "resolved")
	require.NoError(t, err)
	assert.Contains(t, out, "No alerts found.")

	out, err = execute(t, "list", "--severity", "high", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf(`"id": %d`, alert.ID))
}

func TestShowCommand(t *testing.T) {
	_, alert := setupTestDB(t)

	out, err := execute(t, "show", strconv.FormatInt(alert.ID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "Tickets (2):")
	assert.Contains(t, out, "#11")

	_, err = execute(t, "show", "999")
	assert.EqualError(t, err, "alert 999 not found")
}

func TestLifecycleCommands(t *testing.T) {
	path, alert := setupTestDB(t)
	id := strconv.FormatInt(alert.ID, 10)

	_, err := execute(t, "ack", id)
	assert.EqualError(t, err, "--user is required")

	out, err := execute(t, "ack", id, "--user", "42", "--notes", "Network team is on it")
	require.NoError(t, err)
	assert.Contains(t, out, "is now ACKNOWLEDGED")

	_, err = execute(t, "resolve", id)
	assert.EqualError(t, err, "--notes is required")

	out, err = execute(t, "resolve", id, "--notes", "Replaced the VPN concentrator")
	require.NoError(t, err)
	assert.Contains(t, out, "is now RESOLVED")

	_, err = execute(t, "dismiss", id)
	assert.ErrorIs(t, err, alerts.ErrInvalidTransition)

	db, err := storage.NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	entries, err := db.ListAuditEntries(context.Background(), audit.EntityRecurringAlert, alert.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, userAgent, e.UserAgent)
	}
}

func TestStatsCommand(t *testing.T) {
	setupTestDB(t)

	out, err := execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total alerts: 1")
	assert.Contains(t, out, "NETWORK")
}

func TestPrintStats_AllCategories(t *testing.T) {
	stats := &models.AlertStats{
		Total:  4,
		Active: 4,
		ByCategory: map[models.TicketCategory]int{
			models.CategoryNetwork: 2,
			"FACILITIES":           1,
			"LIBRARY":              1,
			models.CategoryEmail:   0,
		},
		BySeverity: map[models.Severity]int{models.SeverityHigh: 4},
	}

	var buf bytes.Buffer
	printStats(&buf, stats)
	out := buf.String()

	assert.Contains(t, out, "FACILITIES 1")
	assert.Contains(t, out, "LIBRARY    1")
	assert.Contains(t, out, "NETWORK    2")
	assert.NotContains(t, out, "EMAIL")
	assert.Less(t, strings.Index(out, "FACILITIES"), strings.Index(out, "LIBRARY"))
	assert.Less(t, strings.Index(out, "LIBRARY"), strings.Index(out, "NETWORK"))
}

func TestInvalidOutputFormat(t *testing.T) {
	setupTestDB(t)

	_, err := execute(t, "stats", "-o", "yaml")
	assert.Error(t, err)
}

func TestRunsRequireArchive(t *testing.T) {
	setupTestDB(t)

	_, err := execute(t, "runs", "list")
	assert.ErrorContains(t, err, "no run report archive configured")
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		severity string
		category string
		want     models.AlertFilter
		wantErr  bool
	}{
		{name: "empty", want: models.AlertFilter{}},
		{
			name:     "normalizes case",
			statuses: []string{"active", " Acknowledged "},
			severity: "critical",
			category: "network",
			want: models.AlertFilter{
				Statuses: []models.AlertStatus{models.AlertActive, models.AlertAcknowledged},
				Severity: models.SeverityCritical,
				Category: models.CategoryNetwork,
			},
		},
		{name: "unknown status", statuses: []string{"OPEN"}, wantErr: true},
		{name: "unknown severity", severity: "urgent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildFilter(tt.statuses, tt.severity, tt.category, 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAlertID(t *testing.T) {
	id, err := parseAlertID("17")
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)

	for _, arg := range []string{"0", "-3", "abc"} {
		_, err := parseAlertID(arg)
		assert.Error(t, err, arg)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "krótki", truncate("krótki", 10))
	assert.Equal(t, "Drukarka..", truncate("Drukarka nie drukuje", 10))
	assert.Equal(t, "Żółć ..", truncate("Żółć na ekranie", 7))
}
