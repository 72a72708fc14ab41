package handlers_test

import (
	"context"
	"time"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// fakeStore implements store.Store for handler tests. Only the methods the
// API layer touches are backed; the rest panic to catch accidental use.
type fakeStore struct {
	pingErr error

	alerts     []domain.Alert
	listErr    error
	resolveErr error
	resolved   map[string]string // alert id -> notes

	summaries    []domain.WeeklySummary
	summariesErr error

	// captured filter arguments from the last ListAlerts call
	gotResolved    bool
	gotMinSeverity domain.Severity
	gotLimit       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{resolved: make(map[string]string)}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListAlerts(_ context.Context, resolved bool, minSeverity domain.Severity, limit int) ([]domain.Alert, error) {
	f.gotResolved = resolved
	f.gotMinSeverity = minSeverity
	f.gotLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.alerts, nil
}

func (f *fakeStore) ResolveAlert(_ context.Context, id, notes string) error {
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolved[id] = notes
	return nil
}

func (f *fakeStore) WeeklySummaries(context.Context) ([]domain.WeeklySummary, error) {
	if f.summariesErr != nil {
		return nil, f.summariesErr
	}
	return f.summaries, nil
}

func (f *fakeStore) InsertWeeklyPerformance(context.Context, []domain.WeeklyPerformance) (int, error) {
	panic("not used")
}
func (f *fakeStore) InsertListingMetrics(context.Context, []domain.WeeklyPerformance) error {
	panic("not used")
}
func (f *fakeStore) GetListingHistory(context.Context, string, int) ([]domain.WeeklyPerformance, error) {
	panic("not used")
}
func (f *fakeStore) ListAllListings(context.Context) ([]string, error) { panic("not used") }
func (f *fakeStore) AppendAlerts(context.Context, []domain.Alert) (int, error) {
	panic("not used")
}
func (f *fakeStore) AlertedListings(context.Context, time.Time) (map[string]struct{}, error) {
	panic("not used")
}
func (f *fakeStore) CreateIngestBatch(context.Context, *domain.IngestBatch) error {
	panic("not used")
}
func (f *fakeStore) CompleteIngestBatch(context.Context, *domain.IngestBatch) error {
	panic("not used")
}
func (f *fakeStore) Migrate(context.Context) error { panic("not used") }
