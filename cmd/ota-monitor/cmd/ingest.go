package cmd

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/ota-listing-monitor/internal/ingest"
	"github.com/donaldgifford/ota-listing-monitor/internal/metrics"
	"github.com/donaldgifford/ota-listing-monitor/pkg/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <workbook.xlsx>",
	Short: "Load a weekly performance workbook into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	clog := log.NewWithOptions(os.Stderr, log.Options{
		Level: parseLogLevel(cfg.Logging.Level),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ing := ingest.NewIngestor(s,
		ingest.WithIngestorLogger(logger.New(cfg.Logging.Level, cfg.Logging.Format)),
	)

	start := time.Now()
	batch, err := ing.IngestFile(ctx, args[0])
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IngestErrorsTotal.Inc()
		return err
	}
	metrics.IngestRowsTotal.Add(float64(batch.RowsLoaded))

	clog.Info("ingest complete",
		"file", batch.SourceFile,
		"weeks", batch.WeeksLoaded,
		"rows", batch.RowsLoaded,
		"skipped", batch.RowsSkipped,
	)
	return nil
}
