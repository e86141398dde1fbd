package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/sources"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 AlmaDesk Recurring Issue Detector - Connectivity Test")
	fmt.Println("=======================================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("\n📡 Testing collaborators...")
	fmt.Println(strings.Repeat("-", 40))

	fmt.Printf("🔸 Testing %s database... ", cfg.DatabaseDriver)
	db, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.DatabaseDriver,
		PostgresURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else {
		defer db.Close()
		fmt.Printf("✅ SUCCESS\n")

		admins, err := db.ListAdmins(ctx)
		if err != nil {
			fmt.Printf("   ❌ Admin lookup failed: %v\n", err)
		} else {
			fmt.Printf("   👤 %d admins will receive critical alert emails\n", len(admins))
		}
	}

	var source sources.TicketSource
	switch {
	case cfg.TicketSource == "api":
		source = sources.NewAPISource(cfg.TicketAPIURL, cfg.TicketAPIToken)
	case db != nil:
		source = db
	}
	if source != nil {
		testSource(ctx, source, cfg)
	}

	fmt.Print("🔸 Testing Azure run archive... ")
	if cfg.StorageAccount == "" {
		fmt.Printf("⚠️  DISABLED (AZURE_STORAGE_ACCOUNT not set)\n")
	} else if archive, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer); err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else if names, err := archive.List(ctx, "runs/"); err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else {
		fmt.Printf("✅ SUCCESS (%d archived reports)\n", len(names))
	}

	fmt.Print("🔸 SMTP... ")
	if cfg.SMTPHost == "" {
		fmt.Printf("⚠️  DISABLED (SMTP_HOST not set, critical alerts will not be emailed)\n")
	} else {
		fmt.Printf("ℹ️  %s:%d (not dialed)\n", cfg.SMTPHost, cfg.SMTPPort)
	}

	fmt.Print("🔸 Teams webhook... ")
	if cfg.TeamsWebhookURL == "" {
		fmt.Printf("⚠️  DISABLED (TEAMS_WEBHOOK_URL not set)\n")
	} else {
		fmt.Printf("ℹ️  configured (not posted)\n")
	}

	fmt.Println("\n✅ Connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Dry-run the detector with: go run ./cmd/test-analysis")
	fmt.Println("   • Start the service with: go run ./cmd/detector")
}

func testSource(ctx context.Context, source sources.TicketSource, cfg *config.Config) {
	fmt.Printf("🔸 Testing %s ticket source... ", source.GetName())

	since := time.Now().Add(-cfg.AnalysisWindow())
	tickets, err := source.FetchTickets(ctx, since, cfg.ExcludedTicketStatuses)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}

	fmt.Printf("✅ SUCCESS (%d tickets in the last %d days)\n", len(tickets), cfg.AnalysisWindowDays)

	counts := make(map[models.TicketCategory]int)
	for _, t := range tickets {
		counts[t.Category]++
	}
	for category, n := range counts {
		fmt.Printf("   • %-10s %d\n", category, n)
	}
	if len(tickets) > 0 {
		fmt.Printf("   📝 Latest: \"%s\"\n", tickets[0].Title)
	}
}
