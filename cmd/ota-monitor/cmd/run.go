package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/ota-listing-monitor/internal/ingest"
	"github.com/donaldgifford/ota-listing-monitor/pkg/logger"
)

var (
	runFile      string
	runSendSlack bool
	runUseAI     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full cycle: optional ingest, then analyze, persist, and deliver alerts",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "workbook to ingest before analyzing")
	runCmd.Flags().BoolVar(&runSendSlack, "send-slack", false, "deliver alerts to Slack even if disabled in config")
	runCmd.Flags().BoolVar(&runUseAI, "use-ai", false, "generate an AI summary even if disabled in config")
	rootCmd.AddCommand(runCmd)
}

func runRun(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runSendSlack {
		if cfg.Notifications.Slack.WebhookURL == "" {
			return fmt.Errorf("--send-slack requires a slack webhook URL in config or OTA_SLACK_WEBHOOK_URL")
		}
		cfg.Notifications.Slack.Enabled = true
	}
	if runUseAI {
		cfg.Insights.Enabled = true
	}

	clog := log.NewWithOptions(os.Stderr, log.Options{
		Level: parseLogLevel(cfg.Logging.Level),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if runFile != "" {
		ing := ingest.NewIngestor(s,
			ingest.WithIngestorLogger(logger.New(cfg.Logging.Level, cfg.Logging.Format)),
		)
		if _, err := ing.IngestFile(ctx, runFile); err != nil {
			return fmt.Errorf("ingesting %s: %w", runFile, err)
		}
	}

	eng := buildEngine(cfg, s)
	if err := eng.RunPipeline(ctx); err != nil {
		return err
	}

	clog.Info("run complete")
	return nil
}
