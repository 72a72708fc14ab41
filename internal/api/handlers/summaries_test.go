package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ota-listing-monitor/internal/api/handlers"
	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

func TestListSummaries(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.summaries = []domain.WeeklySummary{
		{WeekPeriod: "06.02.25 to 06.08.25", TotalListings: 12, TotalAppearances: 1500},
	}

	h := handlers.NewSummariesHandler(fs)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ListSummaries(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ListSummariesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Summaries, 1)
	assert.Equal(t, 12, resp.Summaries[0].TotalListings)
}

func TestListSummaries_StoreError(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.summariesErr = errors.New("boom")

	h := handlers.NewSummariesHandler(fs)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ListSummaries(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
