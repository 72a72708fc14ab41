package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/ota-listing-monitor/internal/api/handlers"
	apimw "github.com/donaldgifford/ota-listing-monitor/internal/api/middleware"
	"github.com/donaldgifford/ota-listing-monitor/internal/engine"
	"github.com/donaldgifford/ota-listing-monitor/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and weekly analysis scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	clog := log.NewWithOptions(os.Stderr, log.Options{
		Level: parseLogLevel(cfg.Logging.Level),
	})
	slogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	eng := buildEngine(cfg, s)
	sched, err := engine.NewScheduler(eng, cfg.Analysis.Schedule, slogger)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(apimw.Recovery(slogger))
	e.Use(apimw.RequestLog(slogger))
	e.Use(apimw.Metrics())

	health := handlers.NewHealthHandler(s)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	alerts := handlers.NewAlertsHandler(s)
	e.GET("/api/v1/alerts", alerts.ListAlerts)
	e.POST("/api/v1/alerts/:id/resolve", alerts.ResolveAlert)

	summaries := handlers.NewSummariesHandler(s)
	e.GET("/api/v1/summaries", summaries.ListSummaries)

	sched.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	clog.Info("starting server", "addr", addr, "schedule", cfg.Analysis.Schedule)

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			clog.Error("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	clog.Info("shutting down")

	// Let in-flight cron jobs finish before killing the server.
	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	clog.Info("server stopped")
	return nil
}
