package cmd

import (
	"context"
	"fmt"

	"github.com/donaldgifford/ota-listing-monitor/internal/config"
	"github.com/donaldgifford/ota-listing-monitor/internal/engine"
	"github.com/donaldgifford/ota-listing-monitor/internal/notify"
	"github.com/donaldgifford/ota-listing-monitor/internal/store"
	"github.com/donaldgifford/ota-listing-monitor/pkg/insights"
	"github.com/donaldgifford/ota-listing-monitor/pkg/logger"
	"github.com/donaldgifford/ota-listing-monitor/pkg/rules"
)

// loadConfig reads the config file named by the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openStore connects to Postgres using the configured pool settings.
func openStore(ctx context.Context, cfg *config.Config) (*store.PostgresStore, error) {
	s, err := store.NewPostgresStore(ctx, cfg.Database.PoolDSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return s, nil
}

// buildEngine wires the analysis pipeline from configuration: thresholds,
// Slack delivery, and the optional LLM summarizer.
func buildEngine(cfg *config.Config, s store.Store) *engine.Engine {
	slogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	var notifier notify.Notifier
	if cfg.Notifications.Slack.Enabled {
		notifier = notify.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	} else {
		notifier = notify.NewNoOpNotifier(slogger)
	}

	opts := []engine.EngineOption{
		engine.WithLogger(slogger),
		engine.WithRules(rules.NewEngine(cfg.Analysis.Rules())),
	}

	if cfg.Insights.Enabled {
		backend := insights.NewAnthropicBackend(
			insights.WithAnthropicModel(cfg.Insights.Model),
		)
		gen := insights.NewGenerator(backend, insights.WithGeneratorLogger(slogger))
		opts = append(opts, engine.WithSummarizer(gen))
	}

	return engine.NewEngine(s, notifier, opts...)
}
