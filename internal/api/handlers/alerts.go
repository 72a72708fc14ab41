package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/ota-listing-monitor/internal/store"
	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

const defaultAlertLimit = 100

// AlertsHandler handles alert ledger endpoints.
type AlertsHandler struct {
	store store.Store
}

// NewAlertsHandler creates a new AlertsHandler.
func NewAlertsHandler(s store.Store) *AlertsHandler {
	return &AlertsHandler{store: s}
}

// ListAlertsResponse is the response for listing alerts.
type ListAlertsResponse struct {
	Alerts []domain.Alert `json:"alerts"`
	Total  int            `json:"total"`
}

// ResolveAlertRequest is the request body for resolving an alert.
type ResolveAlertRequest struct {
	Notes string `json:"notes"`
}

// ListAlerts returns alerts filtered by resolution state and minimum
// severity, ranked by severity score.
//
// Query params: resolved (bool, default false), min_severity
// (CRITICAL|HIGH|MEDIUM|LOW, default LOW), limit (default 100).
func (h *AlertsHandler) ListAlerts(c echo.Context) error {
	resolved := false
	if raw := c.QueryParam("resolved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "resolved must be true or false"})
		}
		resolved = v
	}

	minSeverity := domain.SeverityLow
	if raw := c.QueryParam("min_severity"); raw != "" {
		s := domain.Severity(raw)
		if !s.Valid() {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown severity: " + raw})
		}
		minSeverity = s
	}

	limit := defaultAlertLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = v
	}

	alerts, err := h.store.ListAlerts(c.Request().Context(), resolved, minSeverity, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "alert query failed"})
	}

	return c.JSON(http.StatusOK, ListAlertsResponse{Alerts: alerts, Total: len(alerts)})
}

// ResolveAlert marks an alert as resolved with optional operator notes.
func (h *AlertsHandler) ResolveAlert(c echo.Context) error {
	id := c.Param("id")

	var req ResolveAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	err := h.store.ResolveAlert(c.Request().Context(), id, req.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "alert not found"})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "resolving alert failed"})
	}

	return c.JSON(http.StatusOK, StatusResponse{Status: "resolved"})
}
