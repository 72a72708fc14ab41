package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ota-listing-monitor/pkg/rules"
	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// fakeStore implements store.Store in memory for engine tests.
type fakeStore struct {
	listings   []string
	histories  map[string][]domain.WeeklyPerformance
	alerted    map[string]struct{}
	appended   []domain.Alert
	historyErr error
	lookupErr  error
	appendErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		histories: make(map[string][]domain.WeeklyPerformance),
		alerted:   make(map[string]struct{}),
	}
}

func (f *fakeStore) addListing(id string, weeks ...domain.WeeklyPerformance) {
	f.listings = append(f.listings, id)
	// Mirror the real store: history rows carry the queried listing id.
	for i := range weeks {
		weeks[i].ListingID = id
	}
	f.histories[id] = weeks
}

func (f *fakeStore) ListAllListings(context.Context) ([]string, error) {
	return f.listings, nil
}

func (f *fakeStore) GetListingHistory(_ context.Context, id string, _ int) ([]domain.WeeklyPerformance, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.histories[id], nil
}

func (f *fakeStore) AppendAlerts(_ context.Context, alerts []domain.Alert) (int, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	n := 0
	for _, a := range alerts {
		if _, ok := f.alerted[a.ListingID]; ok {
			continue // unique constraint absorbs the duplicate
		}
		f.appended = append(f.appended, a)
		f.alerted[a.ListingID] = struct{}{}
		n++
	}
	return n, nil
}

func (f *fakeStore) AlertedListings(context.Context, time.Time) (map[string]struct{}, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	out := make(map[string]struct{}, len(f.alerted))
	for k := range f.alerted {
		out[k] = struct{}{}
	}
	return out, nil
}

func (f *fakeStore) InsertWeeklyPerformance(context.Context, []domain.WeeklyPerformance) (int, error) {
	panic("not used")
}
func (f *fakeStore) InsertListingMetrics(context.Context, []domain.WeeklyPerformance) error {
	panic("not used")
}
func (f *fakeStore) WeeklySummaries(context.Context) ([]domain.WeeklySummary, error) {
	panic("not used")
}
func (f *fakeStore) ListAlerts(context.Context, bool, domain.Severity, int) ([]domain.Alert, error) {
	panic("not used")
}
func (f *fakeStore) ResolveAlert(context.Context, string, string) error        { panic("not used") }
func (f *fakeStore) CreateIngestBatch(context.Context, *domain.IngestBatch) error {
	panic("not used")
}
func (f *fakeStore) CompleteIngestBatch(context.Context, *domain.IngestBatch) error {
	panic("not used")
}
func (f *fakeStore) Migrate(context.Context) error { panic("not used") }
func (f *fakeStore) Ping(context.Context) error    { panic("not used") }

type fakeNotifier struct {
	alerts    []domain.Alert
	summary   string
	allClears int
	sendErr   error
}

func (f *fakeNotifier) SendAlerts(_ context.Context, alerts []domain.Alert, summary string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.alerts = alerts
	f.summary = summary
	return nil
}

func (f *fakeNotifier) SendAllClear(context.Context) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.allClears++
	return nil
}

type fakeSummarizer struct {
	out string
}

func (f *fakeSummarizer) Summarize(context.Context, []domain.Alert) string {
	return f.out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func week(offset int) time.Time {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, 7*offset)
}

func rec(weekOffset, appearances, views, bookings int) domain.WeeklyPerformance {
	return domain.WeeklyPerformance{
		ListingID:         "test",
		WeekStart:         week(weekOffset),
		WeekEnd:           week(weekOffset).AddDate(0, 0, 6),
		SearchAppearances: appearances,
		ListingViews:      views,
		Bookings:          bookings,
	}
}

func healthyWeeks() []domain.WeeklyPerformance {
	return []domain.WeeklyPerformance{
		rec(0, 100, 20, 2),
		rec(1, 110, 22, 3),
	}
}

func deadWeeks() []domain.WeeklyPerformance {
	return []domain.WeeklyPerformance{
		rec(0, 0, 0, 0),
		rec(1, 0, 0, 0),
	}
}

func noBookingWeeks() []domain.WeeklyPerformance {
	return []domain.WeeklyPerformance{
		rec(0, 200, 40, 0),
		rec(1, 200, 38, 0),
	}
}

func TestRunAnalysis_NoListings(t *testing.T) {
	t.Parallel()

	eng := NewEngine(newFakeStore(), &fakeNotifier{}, WithLogger(discardLogger()))
	alerts, err := eng.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestRunAnalysis_HealthyListingsProduceNoAlerts(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("111", healthyWeeks()...)
	fs.addListing("222", healthyWeeks()...)

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))
	alerts, err := eng.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestRunAnalysis_RanksByScoreDescending(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("no-bookings", noBookingWeeks()...) // score 75
	fs.addListing("dead", deadWeeks()...)             // score 100
	fs.addListing("healthy", healthyWeeks()...)

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))
	alerts, err := eng.RunAnalysis(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "dead", alerts[0].ListingID)
	assert.Equal(t, "no-bookings", alerts[1].ListingID)
}

func TestRunAnalysis_TiesKeepStoreOrder(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("b-listing", deadWeeks()...)
	fs.addListing("a-listing", deadWeeks()...)

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))
	alerts, err := eng.RunAnalysis(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "b-listing", alerts[0].ListingID, "equal scores keep store iteration order")
	assert.Equal(t, "a-listing", alerts[1].ListingID)
}

func TestRunAnalysis_HistoryErrorIsFatal(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("111", healthyWeeks()...)
	fs.historyErr = errors.New("connection lost")

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))
	_, err := eng.RunAnalysis(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing 111")
}

func TestSaveAlerts_Empty(t *testing.T) {
	t.Parallel()

	eng := NewEngine(newFakeStore(), &fakeNotifier{}, WithLogger(discardLogger()))
	batch, inserted, err := eng.SaveAlerts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Zero(t, inserted)
}

func TestSaveAlerts_KeepsOnlyLatestDate(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))

	alerts := []domain.Alert{
		{ListingID: "current", AlertDate: week(2), SeverityScore: 75, SeverityLevel: domain.SeverityHigh},
		{ListingID: "stale", AlertDate: week(1), SeverityScore: 100, SeverityLevel: domain.SeverityCritical},
	}

	batch, inserted, err := eng.SaveAlerts(context.Background(), alerts)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "current", batch[0].ListingID)
	assert.Equal(t, 1, inserted)
	require.Len(t, fs.appended, 1)
	assert.Equal(t, "slack", fs.appended[0].AlertSentTo)
}

func TestSaveAlerts_SkipsAlreadyAlertedListings(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.alerted["already"] = struct{}{}
	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))

	alerts := []domain.Alert{
		{ListingID: "already", AlertDate: week(2), SeverityScore: 100, SeverityLevel: domain.SeverityCritical},
		{ListingID: "fresh", AlertDate: week(2), SeverityScore: 75, SeverityLevel: domain.SeverityHigh},
	}

	batch, inserted, err := eng.SaveAlerts(context.Background(), alerts)
	require.NoError(t, err)
	assert.Len(t, batch, 2, "batch still includes already-persisted alerts for delivery")
	assert.Equal(t, 1, inserted)
	require.Len(t, fs.appended, 1)
	assert.Equal(t, "fresh", fs.appended[0].ListingID)
}

func TestSaveAlerts_LookupFailureInsertsFullBatch(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.alerted["already"] = struct{}{}
	fs.lookupErr = errors.New("timeout")
	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))

	alerts := []domain.Alert{
		{ListingID: "already", AlertDate: week(2), SeverityScore: 100, SeverityLevel: domain.SeverityCritical},
		{ListingID: "fresh", AlertDate: week(2), SeverityScore: 75, SeverityLevel: domain.SeverityHigh},
	}

	batch, inserted, err := eng.SaveAlerts(context.Background(), alerts)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	// The duplicate is absorbed downstream; only the fresh row lands.
	assert.Equal(t, 1, inserted)
}

func TestSaveAlerts_InsertFailureIsFatal(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.appendErr = errors.New("disk full")
	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))

	_, _, err := eng.SaveAlerts(context.Background(), []domain.Alert{
		{ListingID: "111", AlertDate: week(2), SeverityScore: 75, SeverityLevel: domain.SeverityHigh},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting alerts")
}

func TestSaveAlerts_Idempotent(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))

	alerts := []domain.Alert{
		{ListingID: "111", AlertDate: week(2), SeverityScore: 75, SeverityLevel: domain.SeverityHigh},
	}

	_, inserted, err := eng.SaveAlerts(context.Background(), alerts)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	_, inserted, err = eng.SaveAlerts(context.Background(), alerts)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Len(t, fs.appended, 1)
}

func TestRunPipeline_DeliversRankedAlertsWithSummary(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("no-bookings", noBookingWeeks()...)
	fs.addListing("dead", deadWeeks()...)

	n := &fakeNotifier{}
	eng := NewEngine(fs, n,
		WithLogger(discardLogger()),
		WithSummarizer(&fakeSummarizer{out: "ROOT CAUSES: seasonality"}),
	)

	require.NoError(t, eng.RunPipeline(context.Background()))

	require.Len(t, n.alerts, 2)
	assert.Equal(t, "dead", n.alerts[0].ListingID)
	assert.Equal(t, "ROOT CAUSES: seasonality", n.summary)
	assert.Zero(t, n.allClears)
	assert.Len(t, fs.appended, 2)
}

func TestRunPipeline_DeliversAlertsForLaggingListings(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	// "dead" is absent from the newest week's sheet, so its latest record is
	// a week behind "no-bookings".
	fs.addListing("dead", deadWeeks()...)
	fs.addListing("no-bookings",
		rec(1, 200, 40, 0),
		rec(2, 200, 38, 0),
	)

	n := &fakeNotifier{}
	eng := NewEngine(fs, n, WithLogger(discardLogger()))

	require.NoError(t, eng.RunPipeline(context.Background()))

	// Only the latest-date alert lands in the ledger, but delivery covers
	// the full ranked result.
	require.Len(t, fs.appended, 1)
	assert.Equal(t, "no-bookings", fs.appended[0].ListingID)

	require.Len(t, n.alerts, 2)
	assert.Equal(t, "dead", n.alerts[0].ListingID, "lagging listing still ranks first by score")
	assert.Equal(t, "no-bookings", n.alerts[1].ListingID)
}

func TestRunPipeline_AllClearWhenHealthy(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("111", healthyWeeks()...)

	n := &fakeNotifier{}
	eng := NewEngine(fs, n, WithLogger(discardLogger()))

	require.NoError(t, eng.RunPipeline(context.Background()))
	assert.Equal(t, 1, n.allClears)
	assert.Empty(t, fs.appended)
}

func TestRunPipeline_DeliveryFailureDoesNotFail(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("dead", deadWeeks()...)

	n := &fakeNotifier{sendErr: errors.New("webhook down")}
	eng := NewEngine(fs, n, WithLogger(discardLogger()))

	require.NoError(t, eng.RunPipeline(context.Background()))
	assert.Len(t, fs.appended, 1, "alerts persist even when delivery fails")
}

func TestRunPipeline_SaveFailureIsFatal(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.addListing("dead", deadWeeks()...)
	fs.appendErr = errors.New("disk full")

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(discardLogger()))
	err := eng.RunPipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving alerts")
}

func TestRunPipeline_CustomThresholds(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	// A 28% weekly decline only fires with a tightened WoW threshold.
	fs.addListing("declining",
		rec(0, 100, 20, 2),
		rec(1, 72, 14, 1),
	)

	th := rules.DefaultThresholds()
	th.WowDeclinePct = -25.0

	n := &fakeNotifier{}
	eng := NewEngine(fs, n,
		WithLogger(discardLogger()),
		WithRules(rules.NewEngine(th)),
	)

	require.NoError(t, eng.RunPipeline(context.Background()))
	require.Len(t, n.alerts, 1)
	assert.Equal(t, "declining", n.alerts[0].ListingID)
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	eng := NewEngine(newFakeStore(), &fakeNotifier{}, WithLogger(discardLogger()))

	s, err := NewScheduler(eng, "0 9 * * MON", discardLogger())
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 1)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	t.Parallel()

	eng := NewEngine(newFakeStore(), &fakeNotifier{}, WithLogger(discardLogger()))

	_, err := NewScheduler(eng, "not-a-cron-spec", discardLogger())
	require.Error(t, err)
}
