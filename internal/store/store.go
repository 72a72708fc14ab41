// Package store defines the datastore abstraction for the OTA listing
// monitor. Business logic depends on the Store interface, never on concrete
// implementations, which keeps the engine testable without a running database.
package store

import (
	"context"
	"time"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// Store defines all data access operations for the monitor.
type Store interface {
	// Weekly performance counters.
	InsertWeeklyPerformance(ctx context.Context, recs []domain.WeeklyPerformance) (int, error)
	InsertListingMetrics(ctx context.Context, recs []domain.WeeklyPerformance) error
	GetListingHistory(ctx context.Context, listingID string, maxWeeks int) ([]domain.WeeklyPerformance, error)
	ListAllListings(ctx context.Context) ([]string, error)
	WeeklySummaries(ctx context.Context) ([]domain.WeeklySummary, error)

	// Alert ledger. AppendAlerts is append-only and tolerates unique-key
	// conflicts as "already present"; any other failure is fatal.
	AppendAlerts(ctx context.Context, alerts []domain.Alert) (int, error)
	AlertedListings(ctx context.Context, alertDate time.Time) (map[string]struct{}, error)
	ListAlerts(ctx context.Context, resolved bool, minSeverity domain.Severity, limit int) ([]domain.Alert, error)
	ResolveAlert(ctx context.Context, id string, notes string) error

	// Ingest batches.
	CreateIngestBatch(ctx context.Context, b *domain.IngestBatch) error
	CompleteIngestBatch(ctx context.Context, b *domain.IngestBatch) error

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
