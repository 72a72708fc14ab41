// Package ingest loads weekly OTA performance exports into the datastore.
// The source of truth is an xlsx workbook with one sheet per calendar week,
// named like "06.02.25 to 06.08.25".
package ingest

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// weekPeriodLayout matches sheet names like "06.02.25".
const weekPeriodLayout = "01.02.06"

// Expected column headers in the export. Header matching is
// case-insensitive and tolerates surrounding whitespace.
const (
	colListingID   = "id_listing"
	colHostID      = "id_host"
	colAppearances = "appearance_in_search"
	colViews       = "total_listing_views"
	colBookings    = "bookings"
)

// SheetData is one parsed workbook sheet: the week it covers plus the
// normalized per-listing records it contained.
type SheetData struct {
	Name      string
	WeekStart time.Time
	WeekEnd   time.Time
	Records   []domain.WeeklyPerformance
	Skipped   int
}

// Parser reads weekly performance workbooks.
type Parser struct {
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger for the parser.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a workbook parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile opens the workbook at path and parses every sheet.
// Sheets whose name does not parse as a week period are still loaded,
// dated with the current week, so a renamed sheet loses its date but
// not its data.
func (p *Parser) ParseFile(path string) ([]SheetData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	var sheets []SheetData
	for _, name := range f.GetSheetList() {
		sheet, err := p.parseSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("parsing sheet %q: %w", name, err)
		}
		sheets = append(sheets, sheet)
	}

	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s contains no sheets", path)
	}
	return sheets, nil
}

func (p *Parser) parseSheet(f *excelize.File, name string) (SheetData, error) {
	weekStart, weekEnd, err := ParseWeekPeriod(name)
	if err != nil {
		p.logger.Warn("sheet name is not a week period, using current week",
			"sheet", name,
			"error", err,
		)
		weekStart = currentWeekStart()
		weekEnd = weekStart.AddDate(0, 0, 6)
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return SheetData{}, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) == 0 {
		return SheetData{Name: name, WeekStart: weekStart, WeekEnd: weekEnd}, nil
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return SheetData{}, err
	}

	sheet := SheetData{
		Name:      name,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
	}
	for i, row := range rows[1:] {
		listingID := strings.TrimSpace(cell(row, cols[colListingID]))
		if listingID == "" {
			sheet.Skipped++
			continue
		}

		sheet.Records = append(sheet.Records, domain.WeeklyPerformance{
			ListingID:         listingID,
			HostID:            strings.TrimSpace(cell(row, cols[colHostID])),
			WeekStart:         weekStart,
			WeekEnd:           weekEnd,
			WeekPeriod:        name,
			SearchAppearances: p.counter(name, i+2, colAppearances, cell(row, cols[colAppearances])),
			ListingViews:      p.counter(name, i+2, colViews, cell(row, cols[colViews])),
			Bookings:          p.counter(name, i+2, colBookings, cell(row, cols[colBookings])),
			DataSource:        "airbnb",
		})
	}
	return sheet, nil
}

// counter normalizes a raw cell into a non-negative count. Blank or
// non-numeric cells become 0; so do negatives, since the export should
// never contain them.
func (p *Parser) counter(sheet string, rowNum int, col, raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	// Counts sometimes arrive formatted as floats ("12.0").
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		p.logger.Warn("non-numeric cell treated as zero",
			"sheet", sheet,
			"row", rowNum,
			"column", col,
			"value", raw,
		)
		return 0
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

// ParseWeekPeriod parses a sheet name like "06.02.25 to 06.08.25" into its
// start and end dates.
func ParseWeekPeriod(name string) (start, end time.Time, err error) {
	parts := strings.Split(strings.TrimSpace(name), " to ")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("expected %q format, got %q", "MM.DD.YY to MM.DD.YY", name)
	}

	start, err = time.Parse(weekPeriodLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing week start: %w", err)
	}
	end, err = time.Parse(weekPeriodLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing week end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("week end %s before start %s", parts[1], parts[0])
	}
	return start, end, nil
}

// headerIndex maps the expected column names to their positions in the
// header row.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for _, required := range []string{colListingID, colAppearances, colViews, colBookings} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	// id_host is optional in older exports.
	if _, ok := idx[colHostID]; !ok {
		idx[colHostID] = -1
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// currentWeekStart returns the Monday of the current week, UTC.
func currentWeekStart() time.Time {
	now := time.Now().UTC()
	offset := (int(now.Weekday()) + 6) % 7
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
