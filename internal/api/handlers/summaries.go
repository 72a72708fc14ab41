package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/ota-listing-monitor/internal/store"
	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// SummariesHandler serves portfolio-wide weekly aggregates.
type SummariesHandler struct {
	store store.Store
}

// NewSummariesHandler creates a new SummariesHandler.
func NewSummariesHandler(s store.Store) *SummariesHandler {
	return &SummariesHandler{store: s}
}

// ListSummariesResponse is the response for listing weekly summaries.
type ListSummariesResponse struct {
	Summaries []domain.WeeklySummary `json:"summaries"`
}

// ListSummaries returns one aggregate row per ingested week, most recent first.
func (h *SummariesHandler) ListSummaries(c echo.Context) error {
	sums, err := h.store.WeeklySummaries(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "summary query failed"})
	}
	return c.JSON(http.StatusOK, ListSummariesResponse{Summaries: sums})
}
