// Package cmd contains the alertctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/almadesk/recurring-alerts/internal/app"
	"github.com/almadesk/recurring-alerts/internal/audit"
	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const userAgent = "alertctl"

var (
	verbose bool
	output  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "alertctl",
	Short: "AlmaDesk recurring alert operator tool",
	Long: `alertctl inspects and manages the recurring issue alerts raised by the
AlmaDesk detector. It reads the same environment configuration as the
detector service (.env is loaded when present) and talks to its database directly.

Examples:
  # List open alerts
  alertctl list

  # Acknowledge an alert as user 42
  alertctl ack 17 --user 42 --notes "Network team is on it"

  # Resolve an alert
  alertctl resolve 17 --notes "Replaced the VPN concentrator"

  # Run one analysis now
  alertctl run`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		logrus.SetLevel(logrus.WarnLevel)
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		if output != "table" && output != "json" {
			return fmt.Errorf("invalid output format: %s (use table or json)", output)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// openApp loads configuration and connects to the detector's database
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return app.New(ctx, cfg)
}

// withOperator tags ctx so audit entries record the CLI as their origin
func withOperator(ctx context.Context, userID *int64) context.Context {
	return audit.WithRequestMeta(ctx, audit.RequestMeta{
		UserID:    userID,
		UserAgent: userAgent,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
