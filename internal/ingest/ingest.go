package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/donaldgifford/ota-listing-monitor/internal/store"
	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// Batch statuses recorded in the ingest ledger.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Ingestor parses workbooks and loads their rows into the store.
type Ingestor struct {
	store  store.Store
	parser *Parser
	logger *slog.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithIngestorLogger sets the logger for the ingestor.
func WithIngestorLogger(logger *slog.Logger) IngestorOption {
	return func(i *Ingestor) {
		i.logger = logger
	}
}

// NewIngestor creates an ingestor backed by the given store.
func NewIngestor(s store.Store, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.parser = NewParser(WithLogger(i.logger))
	return i
}

// IngestFile loads one workbook into the store and records the load in the
// ingest ledger. Already-present (listing, week) rows are skipped silently,
// so re-ingesting the same file is safe.
func (i *Ingestor) IngestFile(ctx context.Context, path string) (*domain.IngestBatch, error) {
	batch := &domain.IngestBatch{
		ID:         uuid.NewString(),
		SourceFile: path,
		Status:     StatusRunning,
	}
	if err := i.store.CreateIngestBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("creating ingest batch: %w", err)
	}

	if err := i.load(ctx, path, batch); err != nil {
		batch.Status = StatusFailed
		batch.ErrorText = err.Error()
		if cerr := i.completeBatch(ctx, batch); cerr != nil {
			i.logger.Error("failed to record failed batch", "batch_id", batch.ID, "error", cerr)
		}
		return batch, err
	}

	batch.Status = StatusCompleted
	if err := i.completeBatch(ctx, batch); err != nil {
		return batch, fmt.Errorf("completing ingest batch: %w", err)
	}

	i.logger.Info("ingest completed",
		"file", path,
		"weeks", batch.WeeksLoaded,
		"rows", batch.RowsLoaded,
		"skipped", batch.RowsSkipped,
	)
	return batch, nil
}

func (i *Ingestor) load(ctx context.Context, path string, batch *domain.IngestBatch) error {
	sheets, err := i.parser.ParseFile(path)
	if err != nil {
		return err
	}

	for _, sheet := range sheets {
		inserted, err := i.store.InsertWeeklyPerformance(ctx, sheet.Records)
		if err != nil {
			return fmt.Errorf("loading week %s: %w", sheet.Name, err)
		}
		if err := i.store.InsertListingMetrics(ctx, sheet.Records); err != nil {
			return fmt.Errorf("loading metrics for week %s: %w", sheet.Name, err)
		}

		batch.WeeksLoaded++
		batch.RowsLoaded += inserted
		batch.RowsSkipped += sheet.Skipped + (len(sheet.Records) - inserted)

		i.logger.Info("week loaded",
			"sheet", sheet.Name,
			"inserted", inserted,
			"duplicates", len(sheet.Records)-inserted,
			"skipped", sheet.Skipped,
		)
	}
	return nil
}

func (i *Ingestor) completeBatch(ctx context.Context, batch *domain.IngestBatch) error {
	now := time.Now().UTC()
	batch.CompletedAt = &now
	return i.store.CompleteIngestBatch(ctx, batch)
}
