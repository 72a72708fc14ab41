package insights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

type fakeBackend struct {
	resp     GenerateResponse
	err      error
	lastReq  GenerateRequest
	genCalls int
}

func (f *fakeBackend) Generate(_ context.Context, req GenerateRequest) (GenerateResponse, error) {
	f.lastReq = req
	f.genCalls++
	if f.err != nil {
		return GenerateResponse{}, f.err
	}
	return f.resp, nil
}

func (f *fakeBackend) Name() string { return "fake" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alertBatch(n int) []domain.Alert {
	alerts := make([]domain.Alert, n)
	for i := range alerts {
		alerts[i] = domain.Alert{
			ListingID:         fmt.Sprintf("listing-%d", i),
			SeverityScore:     100 - i,
			SeverityLevel:     domain.SeverityHigh,
			Issues:            []string{"HIGH: No bookings despite 200 search appearances"},
			LatestAppearances: 200,
			AvgAppearances:    180.5,
			AvgBookings:       2.3,
		}
	}
	return alerts
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{resp: GenerateResponse{
		Content: "SUMMARY: two listings slipped.\nROOT CAUSES: pricing.\nACTION ITEMS: adjust rates.",
		Model:   "test-model",
	}}
	g := NewGenerator(backend, WithGeneratorLogger(discardLogger()))

	out := g.Summarize(context.Background(), alertBatch(2))
	assert.Contains(t, out, "SUMMARY:")
	assert.Equal(t, 1, backend.genCalls)

	require.NotEmpty(t, backend.lastReq.Prompt)
	assert.Contains(t, backend.lastReq.Prompt, "flagged 2 listing(s)")
	assert.Contains(t, backend.lastReq.Prompt, "listing-0")
	assert.Contains(t, backend.lastReq.Prompt, "ACTION ITEMS")
	assert.NotEmpty(t, backend.lastReq.SystemMsg)
}

func TestSummarize_BackendFailureFallsBack(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{err: errors.New("api quota exceeded")}
	g := NewGenerator(backend, WithGeneratorLogger(discardLogger()))

	out := g.Summarize(context.Background(), alertBatch(1))
	assert.Equal(t, FallbackSummary, out)
}

func TestSummarize_BlankResponseFallsBack(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{resp: GenerateResponse{Content: "   \n"}}
	g := NewGenerator(backend, WithGeneratorLogger(discardLogger()))

	out := g.Summarize(context.Background(), alertBatch(1))
	assert.Equal(t, FallbackSummary, out)
}

func TestSummarize_NoAlertsSkipsBackend(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	g := NewGenerator(backend, WithGeneratorLogger(discardLogger()))

	out := g.Summarize(context.Background(), nil)
	assert.Contains(t, out, "performing within normal ranges")
	assert.Equal(t, 0, backend.genCalls)
}

func TestSummarize_LimitsPromptDetail(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{resp: GenerateResponse{Content: "ok"}}
	g := NewGenerator(backend, WithGeneratorLogger(discardLogger()))

	g.Summarize(context.Background(), alertBatch(8))

	assert.Contains(t, backend.lastReq.Prompt, "listing-4")
	assert.NotContains(t, backend.lastReq.Prompt, "listing-5")
	assert.Contains(t, backend.lastReq.Prompt, "3 additional lower-priority alerts omitted")
}
