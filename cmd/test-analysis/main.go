package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/almadesk/recurring-alerts/internal/analysis"
	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/almadesk/recurring-alerts/internal/detection"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/sirupsen/logrus"
)

const outputDir = "test_output"

// TestStorage archives run reports under test_output
type TestStorage struct{}

func (t *TestStorage) Store(ctx context.Context, filename string, data []byte) error {
	path := filepath.Join(outputDir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (t *TestStorage) Retrieve(ctx context.Context, filename string) ([]byte, error) {
	return os.ReadFile(filepath.Join(outputDir, filename))
}

func (t *TestStorage) List(ctx context.Context, prefix string) ([]string, error) {
	return []string{}, nil
}

// TestNotificationService prints emails and run summaries to the terminal
type TestNotificationService struct{}

func (t *TestNotificationService) SendEmail(ctx context.Context, email *models.Email) error {
	fmt.Println("\n✉️  EMAIL")
	fmt.Printf("To:      %s\n", email.To)
	fmt.Printf("Subject: %s\n\n", email.Subject)
	fmt.Println(email.Text)
	return nil
}

func (t *TestNotificationService) SendReport(ctx context.Context, report *models.RunReport) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("📊 RECURRING ISSUE ANALYSIS")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("🆔 Run: %s (%s)\n", report.RunID, report.Duration)
	fmt.Printf("🕒 Window since: %s\n", report.WindowStart.Format("2006-01-02 15:04 UTC"))
	fmt.Printf("🎫 Tickets analyzed: %d\n", report.TicketsAnalyzed)
	fmt.Printf("🔁 Patterns detected: %d\n", report.PatternsDetected)
	fmt.Printf("🆕 Alerts created: %d | ♻️  updated: %d\n", report.AlertsCreated, report.AlertsUpdated)
	fmt.Printf("🚨 Critical: %d | ✉️  emails sent: %d, failed: %d\n",
		report.CriticalAlerts, report.NotificationsSent, report.NotificationsFailed)

	fmt.Println("\n📝 Alerts:")
	for i, alert := range report.Alerts {
		fmt.Printf("\n   %d. [%s] %s\n", i+1, alert.Severity, alert.Title)
		fmt.Printf("      🔢 %d tickets from %d users\n", alert.OccurrenceCount, alert.AffectedUsers)
		fmt.Printf("      🏷️  Keywords: %s\n", strings.Join(alert.Keywords, ", "))
		fmt.Printf("      🛠️  %s\n", alert.SuggestedAction)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	return nil
}

func main() {
	fmt.Println("🤖 AlmaDesk Recurring Issue Detector - Test Analysis")
	fmt.Println("===================================================")

	logrus.SetLevel(logrus.WarnLevel)
	ctx := context.Background()
	now := time.Now().UTC()

	tickets := sampleTickets(now)
	if len(os.Args) > 1 {
		loaded, err := loadTickets(os.Args[1])
		if err != nil {
			fmt.Printf("❌ Could not read tickets: %v\n", err)
			os.Exit(1)
		}
		tickets = loaded
	}

	dbDir, err := os.MkdirTemp("", "almadesk-test-analysis")
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dbDir)

	db, err := storage.NewSQLite(ctx, filepath.Join(dbDir, "analysis.db"))
	if err == nil {
		err = db.EnsureSchema(ctx)
	}
	if err != nil {
		fmt.Printf("❌ Could not prepare database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.ImportTickets(ctx, tickets); err != nil {
		fmt.Printf("❌ Could not import tickets: %v\n", err)
		os.Exit(1)
	}
	if err := db.ImportUsers(ctx, []models.User{
		{ID: 1000, Email: "admin@almadesk.example.edu", Name: "Admin", Role: models.RoleAdmin, Active: true},
	}); err != nil {
		fmt.Printf("❌ Could not import users: %v\n", err)
		os.Exit(1)
	}

	cfg := &config.Config{
		MinOccurrences:           3,
		AnalysisWindowDays:       30,
		TitleSimilarityThreshold: 0.7,
		MembershipConfidence:     0.9,
		ExcludedTicketStatuses:   []models.TicketStatus{models.TicketClosed},
		DashboardURL:             "http://localhost:3000/admin/recurring-alerts",
	}

	vocab, err := detection.LoadVocabulary(os.Getenv("VOCABULARY_FILE"))
	if err != nil {
		fmt.Printf("❌ Could not load vocabulary: %v\n", err)
		os.Exit(1)
	}

	service := analysis.NewService(cfg, vocab, analysis.Dependencies{
		Tickets:  db,
		Alerts:   db,
		Users:    db,
		Notifier: &TestNotificationService{},
		Archive:  &TestStorage{},
	})

	fmt.Printf("\n🔍 Analyzing %d tickets...\n", len(tickets))
	if _, err := service.RunAnalysis(ctx); err != nil {
		fmt.Printf("❌ Analysis failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n💾 Run report saved under %s/%s\n", outputDir, analysis.ArchivePrefix)
	fmt.Println(service.GetMetrics())
}

func loadTickets(path string) ([]models.Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tickets []models.Ticket
	if err := json.Unmarshal(data, &tickets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tickets, nil
}

func sampleTickets(now time.Time) []models.Ticket {
	var tickets []models.Ticket
	id := int64(1)
	add := func(title string, category models.TicketCategory, user int64, hoursAgo int) {
		tickets = append(tickets, models.Ticket{
			ID:          id,
			Title:       title,
			Category:    category,
			Priority:    models.PriorityMedium,
			Status:      models.TicketOpen,
			CreatedByID: user,
			CreatedAt:   now.Add(-time.Duration(hoursAgo) * time.Hour),
		})
		id++
	}

	// Eduroam outage: 11 reports from 6 users
	for i := 0; i < 11; i++ {
		add("Eduroam nie działa w budynku A", models.CategoryNetwork, int64(10+i%6), i*3)
	}
	// USOS login problems mentioning credentials
	for i := 0; i < 5; i++ {
		add("Nie mogę zalogować się do USOS, hasło odrzucone", models.CategoryAccount, int64(30+i%2), i*7)
	}
	// Same projector in one lecture hall
	for i := 0; i < 3; i++ {
		add("Projektor w sali 204 nie wyświetla obrazu", models.CategoryHardware, 50, i*20)
	}
	// Noise below the minimum
	add("Prośba o instalację MATLAB", models.CategorySoftware, 60, 5)
	add("Prośba o dostęp do dysku sieciowego", models.CategoryOther, 61, 9)

	return tickets
}
