package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/robfig/cron/v3"
)

// Cron expressions behind the named schedules (seconds field first)
const (
	DailySchedule  = "0 0 2 * * *"
	WeeklySchedule = "0 0 2 * * MON"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	AnalysisSchedule string // "daily", "weekly" or a 6-field cron expression
	TimeZone         string
	AnalysisTimeout  time.Duration

	// Detection configuration
	MinOccurrences           int
	AnalysisWindowDays       int
	TitleSimilarityThreshold float64
	MembershipConfidence     float64
	ExcludedTicketStatuses   []models.TicketStatus
	VocabularyFile           string

	// Database configuration
	DatabaseDriver string // "postgres" or "sqlite"
	DatabaseURL    string
	SQLitePath     string

	// Ticket source configuration
	TicketSource   string // "database" or "api"
	TicketAPIURL   string
	TicketAPIToken string

	// Azure Storage configuration
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	TeamsWebhookURL    string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string
	EmailRatePerSecond float64
	DashboardURL       string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Debug:            getBoolEnv("DEBUG", false),
		AnalysisSchedule: getEnv("ANALYSIS_SCHEDULE", "daily"),
		TimeZone:         getEnv("TIMEZONE", "UTC"),
		AnalysisTimeout:  time.Duration(getIntEnv("ANALYSIS_TIMEOUT_MINUTES", 10)) * time.Minute,

		MinOccurrences:           getIntEnv("MIN_OCCURRENCES", 3),
		AnalysisWindowDays:       getIntEnv("ANALYSIS_WINDOW_DAYS", 30),
		TitleSimilarityThreshold: getFloatEnv("TITLE_SIMILARITY_THRESHOLD", 0.7),
		MembershipConfidence:     getFloatEnv("MEMBERSHIP_CONFIDENCE", 0.9),
		ExcludedTicketStatuses:   ticketStatuses(getSliceEnv("EXCLUDED_TICKET_STATUSES", []string{"CLOSED"})),
		VocabularyFile:           getEnv("VOCABULARY_FILE", ""),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		SQLitePath:     getEnv("SQLITE_PATH", "almadesk-alerts.db"),

		TicketSource:   getEnv("TICKET_SOURCE", "database"),
		TicketAPIURL:   getEnv("TICKET_API_URL", ""),
		TicketAPIToken: getEnv("TICKET_API_TOKEN", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "analysis-runs"),

		TeamsWebhookURL:    getEnv("TEAMS_WEBHOOK_URL", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getIntEnv("SMTP_PORT", 587),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:           getEnv("SMTP_FROM", ""),
		EmailRatePerSecond: getFloatEnv("EMAIL_RATE_PER_SECOND", 2),
		DashboardURL:       getEnv("DASHBOARD_URL", ""),
	}

	if cfg.DatabaseDriver == "postgres" {
		dsn, err := postgresURL()
		if err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		cfg.DatabaseURL = dsn
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ScheduleSpec returns the cron expression for AnalysisSchedule
func (c *Config) ScheduleSpec() string {
	switch c.AnalysisSchedule {
	case "daily":
		return DailySchedule
	case "weekly":
		return WeeklySchedule
	default:
		return c.AnalysisSchedule
	}
}

// AnalysisWindow is the trailing window analyzed by each run
func (c *Config) AnalysisWindow() time.Duration {
	return time.Duration(c.AnalysisWindowDays) * 24 * time.Hour
}

func (c *Config) validate() error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.ScheduleSpec()); err != nil {
		return fmt.Errorf("ANALYSIS_SCHEDULE must be 'daily', 'weekly' or a 6-field cron expression: %w", err)
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if c.AnalysisTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT_MINUTES must be positive")
	}

	if c.MinOccurrences < 1 {
		return fmt.Errorf("MIN_OCCURRENCES must be at least 1")
	}

	if c.AnalysisWindowDays < 1 {
		return fmt.Errorf("ANALYSIS_WINDOW_DAYS must be at least 1")
	}

	if c.TitleSimilarityThreshold <= 0 || c.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("TITLE_SIMILARITY_THRESHOLD must be in (0, 1]")
	}

	if c.MembershipConfidence <= 0 || c.MembershipConfidence > 1 {
		return fmt.Errorf("MEMBERSHIP_CONFIDENCE must be in (0, 1]")
	}

	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be 'postgres' or 'sqlite'")
	}

	switch c.TicketSource {
	case "database":
	case "api":
		if c.TicketAPIURL == "" {
			return fmt.Errorf("TICKET_API_URL is required when TICKET_SOURCE is 'api'")
		}
	default:
		return fmt.Errorf("TICKET_SOURCE must be 'database' or 'api'")
	}

	if c.SMTPHost != "" && c.SMTPFrom == "" && c.SMTPUsername == "" {
		return fmt.Errorf("SMTP_FROM or SMTP_USERNAME is required when SMTP_HOST is set")
	}

	return nil
}

// postgresURL builds the DSN from DATABASE_URL or the libpq PG* variables
func postgresURL() (string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}

	user := os.Getenv("PGUSER")
	dbName := os.Getenv("PGDATABASE")
	if user == "" || dbName == "" {
		return "", fmt.Errorf("missing required env: DATABASE_URL or PGUSER/PGDATABASE")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(getEnv("PGHOST", "localhost"), getEnv("PGPORT", "5432")),
		Path:   dbName,
	}
	if password := os.Getenv("PGPASSWORD"); password == "" {
		u.User = url.User(user)
	} else {
		u.User = url.UserPassword(user, password)
	}
	q := u.Query()
	q.Set("sslmode", getEnv("PGSSLMODE", "disable"))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func ticketStatuses(values []string) []models.TicketStatus {
	statuses := make([]models.TicketStatus, 0, len(values))
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			statuses = append(statuses, models.TicketStatus(v))
		}
	}
	return statuses
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
