// Package domain defines the core business types for the OTA listing monitor.
package domain

import (
	"time"
)

// Severity classifies how badly a listing is underperforming.
type Severity string

// Severity tiers, worst first.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

var severityRanks = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns the total-order position of the severity; higher is worse.
// Unknown severities rank below LOW.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// Valid reports whether s is one of the four known tiers.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// MaxSeverity returns the worse of the two tiers.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// WeeklyPerformance is one listing's counters for one calendar week.
// Records are immutable once written; at most one exists per
// (listing_id, week_start).
type WeeklyPerformance struct {
	ListingID         string    `json:"listing_id"         db:"listing_id"`
	HostID            string    `json:"host_id,omitempty"  db:"host_id"`
	WeekStart         time.Time `json:"week_start"         db:"week_start"`
	WeekEnd           time.Time `json:"week_end"           db:"week_end"`
	WeekPeriod        string    `json:"week_period"        db:"week_period"`
	SearchAppearances int       `json:"search_appearances" db:"search_appearances"`
	ListingViews      int       `json:"listing_views"      db:"listing_views"`
	Bookings          int       `json:"bookings"           db:"bookings"`
	DataSource        string    `json:"data_source"        db:"data_source"`
}

// ViewRate is views per search appearance for this week.
func (w *WeeklyPerformance) ViewRate() float64 {
	return float64(w.ListingViews) / float64(max(w.SearchAppearances, 1))
}

// ConversionRate is bookings per view for this week.
func (w *WeeklyPerformance) ConversionRate() float64 {
	return float64(w.Bookings) / float64(max(w.ListingViews, 1))
}

// Finding is one triggered rule: a tier, its score contribution, and a
// human-readable description.
type Finding struct {
	Severity    Severity `json:"severity"`
	Score       int      `json:"score"`
	Description string   `json:"description"`
}

// Alert is the aggregate analysis result for one listing in its most recent
// week. SeverityScore is the sum of every triggered finding's weight;
// SeverityLevel is the worst tier among triggered findings. The two
// deliberately diverge: ranking uses the score, display uses the level, and
// callers must not infer one from the other.
type Alert struct {
	ID            string    `json:"id,omitempty"  db:"id"`
	ListingID     string    `json:"listing_id"    db:"listing_id"`
	AlertDate     time.Time `json:"alert_date"    db:"alert_date"`
	SeverityScore int       `json:"severity_score" db:"severity_score"`
	SeverityLevel Severity  `json:"severity_level" db:"severity_level"`
	Issues        []string  `json:"issues"         db:"issues"`

	// Snapshot metrics the alert was computed from.
	LatestAppearances    int     `json:"latest_appearances"     db:"latest_appearances"`
	LatestViews          int     `json:"latest_views"           db:"latest_views"`
	LatestBookings       int     `json:"latest_bookings"        db:"latest_bookings"`
	LatestViewRate       float64 `json:"latest_view_rate"       db:"latest_view_rate"`
	LatestConversionRate float64 `json:"latest_conversion_rate" db:"latest_conversion_rate"`
	AvgAppearances       float64 `json:"avg_appearances"        db:"avg_appearances"`
	AvgBookings          float64 `json:"avg_bookings"           db:"avg_bookings"`
	WowChangePct         float64 `json:"wow_change_pct"         db:"wow_change_pct"`

	// Ledger lifecycle fields, managed by the operator workflow.
	RecommendedActions string     `json:"recommended_actions,omitempty" db:"recommended_actions"`
	AlertSentTo        string     `json:"alert_sent_to,omitempty"       db:"alert_sent_to"`
	Resolved           bool       `json:"resolved"                      db:"resolved"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"         db:"resolved_at"`
	ResolvedNotes      string     `json:"resolved_notes,omitempty"      db:"resolved_notes"`
	CreatedAt          time.Time  `json:"created_at"                    db:"created_at"`
}

// CountBySeverity tallies alerts per tier.
func CountBySeverity(alerts []Alert) map[Severity]int {
	counts := make(map[Severity]int, 4)
	for i := range alerts {
		counts[alerts[i].SeverityLevel]++
	}
	return counts
}

// WeeklySummary aggregates all listings' counters for one week.
type WeeklySummary struct {
	WeekPeriod        string    `json:"week_period"         db:"week_period"`
	WeekStart         time.Time `json:"week_start"          db:"week_start"`
	TotalListings     int       `json:"total_listings"      db:"total_listings"`
	TotalAppearances  int64     `json:"total_appearances"   db:"total_appearances"`
	TotalViews        int64     `json:"total_views"         db:"total_views"`
	TotalBookings     int64     `json:"total_bookings"      db:"total_bookings"`
	AvgViewRate       float64   `json:"avg_view_rate"       db:"avg_view_rate"`
	AvgConversionRate float64   `json:"avg_conversion_rate" db:"avg_conversion_rate"`
}

// IngestBatch records a single spreadsheet load.
type IngestBatch struct {
	ID           string     `json:"id"                      db:"id"`
	SourceFile   string     `json:"source_file"             db:"source_file"`
	WeeksLoaded  int        `json:"weeks_loaded"            db:"weeks_loaded"`
	RowsLoaded   int        `json:"rows_loaded"             db:"rows_loaded"`
	RowsSkipped  int        `json:"rows_skipped"            db:"rows_skipped"`
	StartedAt    time.Time  `json:"started_at"              db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	Status       string     `json:"status"                  db:"status"`
	ErrorText    string     `json:"error_text,omitempty"    db:"error_text"`
}
