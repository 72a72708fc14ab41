package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
// Pool sizing comes from the connection string (pool_max_conns).
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// InsertWeeklyPerformance appends weekly counter rows, skipping rows whose
// (listing_id, week_start) already exists. Returns the number inserted.
func (s *PostgresStore) InsertWeeklyPerformance(
	ctx context.Context,
	recs []domain.WeeklyPerformance,
) (int, error) {
	inserted := 0
	for i := range recs {
		r := &recs[i]
		args := pgx.NamedArgs{
			"listing_id":         r.ListingID,
			"host_id":            r.HostID,
			"week_start":         r.WeekStart,
			"week_end":           r.WeekEnd,
			"week_period":        r.WeekPeriod,
			"search_appearances": r.SearchAppearances,
			"listing_views":      r.ListingViews,
			"bookings":           r.Bookings,
			"data_source":        r.DataSource,
		}
		tag, err := s.pool.Exec(ctx, queryInsertWeeklyPerformance, args)
		if err != nil {
			return inserted, fmt.Errorf("inserting weekly performance for %s: %w", r.ListingID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// InsertListingMetrics upserts derived per-week rates for each record.
func (s *PostgresStore) InsertListingMetrics(
	ctx context.Context,
	recs []domain.WeeklyPerformance,
) error {
	for i := range recs {
		r := &recs[i]
		args := pgx.NamedArgs{
			"listing_id":      r.ListingID,
			"week_start":      r.WeekStart,
			"view_rate":       r.ViewRate(),
			"conversion_rate": r.ConversionRate(),
			"search_to_booking_rate": float64(r.Bookings) /
				float64(max(r.SearchAppearances, 1)),
		}
		if _, err := s.pool.Exec(ctx, queryInsertListingMetrics, args); err != nil {
			return fmt.Errorf("inserting listing metrics for %s: %w", r.ListingID, err)
		}
	}
	return nil
}

// GetListingHistory returns up to maxWeeks most recent weekly records for a
// listing, most recent first.
func (s *PostgresStore) GetListingHistory(
	ctx context.Context,
	listingID string,
	maxWeeks int,
) ([]domain.WeeklyPerformance, error) {
	rows, err := s.pool.Query(ctx, queryGetListingHistory, listingID, maxWeeks)
	if err != nil {
		return nil, fmt.Errorf("querying listing history: %w", err)
	}
	defer rows.Close()

	var recs []domain.WeeklyPerformance
	for rows.Next() {
		var r domain.WeeklyPerformance
		if err := rows.Scan(
			&r.ListingID, &r.HostID, &r.WeekStart, &r.WeekEnd, &r.WeekPeriod,
			&r.SearchAppearances, &r.ListingViews, &r.Bookings, &r.DataSource,
		); err != nil {
			return nil, fmt.Errorf("scanning weekly performance: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listing history: %w", err)
	}

	return recs, nil
}

// ListAllListings returns all known listing ids, ordered by most recently
// updated first with listing id as tiebreak. The order is deterministic and
// defines the stable ranking tiebreak downstream.
func (s *PostgresStore) ListAllListings(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, queryListAllListings)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var lastUpdated time.Time
		if err := rows.Scan(&id, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scanning listing id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}

	return ids, nil
}

// WeeklySummaries returns per-week aggregates across all listings.
func (s *PostgresStore) WeeklySummaries(ctx context.Context) ([]domain.WeeklySummary, error) {
	rows, err := s.pool.Query(ctx, queryWeeklySummaries)
	if err != nil {
		return nil, fmt.Errorf("querying weekly summaries: %w", err)
	}
	defer rows.Close()

	var sums []domain.WeeklySummary
	for rows.Next() {
		var w domain.WeeklySummary
		if err := rows.Scan(
			&w.WeekPeriod, &w.WeekStart, &w.TotalListings,
			&w.TotalAppearances, &w.TotalViews, &w.TotalBookings,
			&w.AvgViewRate, &w.AvgConversionRate,
		); err != nil {
			return nil, fmt.Errorf("scanning weekly summary: %w", err)
		}
		sums = append(sums, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weekly summaries: %w", err)
	}

	return sums, nil
}

// AppendAlerts inserts alerts into the ledger. Rows whose
// (listing_id, alert_date) already exists are skipped rather than failing;
// any other error aborts. Returns the number actually inserted.
func (s *PostgresStore) AppendAlerts(ctx context.Context, alerts []domain.Alert) (int, error) {
	inserted := 0
	for i := range alerts {
		a := &alerts[i]
		args := pgx.NamedArgs{
			"listing_id":             a.ListingID,
			"alert_date":             a.AlertDate,
			"severity_score":         a.SeverityScore,
			"severity_level":         string(a.SeverityLevel),
			"issues":                 strings.Join(a.Issues, "\n"),
			"latest_appearances":     a.LatestAppearances,
			"latest_views":           a.LatestViews,
			"latest_bookings":        a.LatestBookings,
			"latest_view_rate":       a.LatestViewRate,
			"latest_conversion_rate": a.LatestConversionRate,
			"avg_appearances":        a.AvgAppearances,
			"avg_bookings":           a.AvgBookings,
			"wow_change_pct":         a.WowChangePct,
			"recommended_actions":    a.RecommendedActions,
			"alert_sent_to":          a.AlertSentTo,
		}
		tag, err := s.pool.Exec(ctx, queryAppendAlert, args)
		if err != nil {
			return inserted, fmt.Errorf("appending alert for %s: %w", a.ListingID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// AlertedListings returns the set of listing ids already alerted for the date.
func (s *PostgresStore) AlertedListings(
	ctx context.Context,
	alertDate time.Time,
) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, queryAlertedListings, alertDate)
	if err != nil {
		return nil, fmt.Errorf("querying existing alerts: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning alerted listing: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating existing alerts: %w", err)
	}

	return existing, nil
}

// ListAlerts returns alerts at or above minSeverity filtered by resolved
// state, worst score first.
func (s *PostgresStore) ListAlerts(
	ctx context.Context,
	resolved bool,
	minSeverity domain.Severity,
	limit int,
) ([]domain.Alert, error) {
	minRank := minSeverity.Rank()
	if minRank == 0 {
		minRank = domain.SeverityLow.Rank()
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, queryListAlerts, resolved, minRank, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var level, issues string
		if err := rows.Scan(
			&a.ID, &a.ListingID, &a.AlertDate, &a.SeverityScore, &level, &issues,
			&a.LatestAppearances, &a.LatestViews, &a.LatestBookings,
			&a.LatestViewRate, &a.LatestConversionRate,
			&a.AvgAppearances, &a.AvgBookings, &a.WowChangePct,
			&a.RecommendedActions, &a.AlertSentTo,
			&a.Resolved, &a.ResolvedAt, &a.ResolvedNotes, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.SeverityLevel = domain.Severity(level)
		if issues != "" {
			a.Issues = strings.Split(issues, "\n")
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return alerts, nil
}

// ResolveAlert marks an alert resolved with optional operator notes.
func (s *PostgresStore) ResolveAlert(ctx context.Context, id string, notes string) error {
	tag, err := s.pool.Exec(ctx, queryResolveAlert, id, notes)
	if err != nil {
		return fmt.Errorf("resolving alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CreateIngestBatch records the start of a spreadsheet load.
func (s *PostgresStore) CreateIngestBatch(ctx context.Context, b *domain.IngestBatch) error {
	args := pgx.NamedArgs{
		"id":           b.ID,
		"source_file":  b.SourceFile,
		"weeks_loaded": b.WeeksLoaded,
		"rows_loaded":  b.RowsLoaded,
		"rows_skipped": b.RowsSkipped,
		"status":       b.Status,
	}
	if err := s.pool.QueryRow(ctx, queryCreateIngestBatch, args).Scan(&b.StartedAt); err != nil {
		return fmt.Errorf("creating ingest batch: %w", err)
	}
	return nil
}

// CompleteIngestBatch finalizes a batch with its outcome and row counts.
func (s *PostgresStore) CompleteIngestBatch(ctx context.Context, b *domain.IngestBatch) error {
	args := pgx.NamedArgs{
		"id":           b.ID,
		"status":       b.Status,
		"error_text":   b.ErrorText,
		"weeks_loaded": b.WeeksLoaded,
		"rows_loaded":  b.RowsLoaded,
		"rows_skipped": b.RowsSkipped,
	}
	if _, err := s.pool.Exec(ctx, queryCompleteIngestBatch, args); err != nil {
		return fmt.Errorf("completing ingest batch: %w", err)
	}
	return nil
}
