// Package cmd implements the CLI commands for the OTA listing monitor.
package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ota-monitor",
	Short: "Monitor weekly Airbnb listing performance",
	Long: "A service that ingests weekly OTA performance exports, evaluates every " +
		"listing against multi-factor severity rules, persists the resulting alerts, " +
		"and delivers them to Slack with an optional AI summary.",
	PersistentPreRun: func(*cobra.Command, []string) {
		// Secrets like ANTHROPIC_API_KEY and OTA_SLACK_WEBHOOK_URL come from
		// the environment; a local .env is a convenience, not a requirement.
		if err := godotenv.Load(); err != nil {
			log.Debug("no .env file found, using system environment")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func parseLogLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
