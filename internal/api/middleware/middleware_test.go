package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ota-listing-monitor/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestLog_GeneratesRequestID(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(RequestLog(discardLogger()))
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestLog_PropagatesExistingRequestID(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(RequestLog(discardLogger()))
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestRecovery_ReturnsInternalServerError(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(Recovery(discardLogger()))
	e.GET("/boom", func(echo.Context) error {
		panic("something broke")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRecovery_PassesThroughErrors(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(Recovery(discardLogger()))
	e.GET("/err", func(echo.Context) error {
		return errors.New("regular error")
	})

	req := httptest.NewRequest(http.MethodGet, "/err", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetrics_RecordsRequests(t *testing.T) {
	e := echo.New()
	e.Use(Metrics())
	e.GET("/api/v1/alerts", func(c echo.Context) error {
		return c.String(http.StatusOK, "[]")
	})

	before := testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/alerts", "200"),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	after := testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/alerts", "200"),
	)
	assert.Equal(t, before+1, after)
}

func TestMetrics_SkipsHealthPathsAndSetsGauge(t *testing.T) {
	e := echo.New()
	e.Use(Metrics())
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HealthzUp))
}
