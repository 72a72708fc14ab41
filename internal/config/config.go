// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution. A small set of keys
// can additionally be overridden through OTA_-prefixed environment variables,
// which is how deployments inject secrets without touching the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/ota-listing-monitor/pkg/rules"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Insights      InsightsConfig      `yaml:"insights"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// PoolDSN returns the DSN with the pool size applied, for pgxpool.
func (d *DatabaseConfig) PoolDSN() string {
	return fmt.Sprintf("%s pool_max_conns=%d", d.DSN(), d.PoolSize)
}

// IngestConfig defines spreadsheet ingest settings.
type IngestConfig struct {
	DataDir string `yaml:"data_dir"`
}

// AnalysisConfig defines the rule engine thresholds and run schedule.
type AnalysisConfig struct {
	Schedule     string           `yaml:"schedule"` // cron expression
	HistoryWeeks int              `yaml:"history_weeks"`
	Thresholds   ThresholdsConfig `yaml:"thresholds"`
}

// ThresholdsConfig tunes the severity rules. Zero values fall back to the
// built-in defaults.
type ThresholdsConfig struct {
	CriticalScore         int     `yaml:"critical_score"`
	HighScore             int     `yaml:"high_score"`
	MediumScore           int     `yaml:"medium_score"`
	LowScore              int     `yaml:"low_score"`
	MinAppearancesForHigh int     `yaml:"min_appearances_for_high"`
	ViewRateDropRatio     float64 `yaml:"view_rate_drop_ratio"`
	ConversionDropRatio   float64 `yaml:"conversion_drop_ratio"`
	WowDeclinePct         float64 `yaml:"wow_decline_pct"`
}

// Rules converts the analysis configuration into rule engine thresholds.
func (a *AnalysisConfig) Rules() rules.Thresholds {
	t := rules.DefaultThresholds()
	if a.HistoryWeeks > 0 {
		t.HistoryWeeks = a.HistoryWeeks
	}
	if a.Thresholds.CriticalScore > 0 {
		t.CriticalScore = a.Thresholds.CriticalScore
	}
	if a.Thresholds.HighScore > 0 {
		t.HighScore = a.Thresholds.HighScore
	}
	if a.Thresholds.MediumScore > 0 {
		t.MediumScore = a.Thresholds.MediumScore
	}
	if a.Thresholds.LowScore > 0 {
		t.LowScore = a.Thresholds.LowScore
	}
	if a.Thresholds.MinAppearancesForHigh > 0 {
		t.MinAppearancesForHigh = a.Thresholds.MinAppearancesForHigh
	}
	if a.Thresholds.ViewRateDropRatio > 0 {
		t.ViewRateDropRatio = a.Thresholds.ViewRateDropRatio
	}
	if a.Thresholds.ConversionDropRatio > 0 {
		t.ConversionDropRatio = a.Thresholds.ConversionDropRatio
	}
	if a.Thresholds.WowDeclinePct != 0 {
		t.WowDeclinePct = a.Thresholds.WowDeclinePct
	}
	return t
}

// InsightsConfig defines LLM summary settings.
type InsightsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // anthropic
	Model   string `yaml:"model"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Slack SlackConfig `yaml:"slack"`
}

// SlackConfig defines Slack incoming webhook settings.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution, OTA_ env overrides, and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets OTA_-prefixed environment variables override the
// keys that typically differ per deployment.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("OTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("database.host"); s != "" {
		cfg.Database.Host = s
	}
	if p := v.GetInt("database.port"); p != 0 {
		cfg.Database.Port = p
	}
	if s := v.GetString("database.name"); s != "" {
		cfg.Database.Name = s
	}
	if s := v.GetString("database.user"); s != "" {
		cfg.Database.User = s
	}
	if s := v.GetString("database.password"); s != "" {
		cfg.Database.Password = s
	}
	if s := v.GetString("slack.webhook.url"); s != "" {
		cfg.Notifications.Slack.WebhookURL = s
		cfg.Notifications.Slack.Enabled = true
	}
	if s := v.GetString("analysis.schedule"); s != "" {
		cfg.Analysis.Schedule = s
	}
	if n := v.GetInt("analysis.history.weeks"); n != 0 {
		cfg.Analysis.HistoryWeeks = n
	}
	if n := v.GetInt("analysis.thresholds.critical.score"); n != 0 {
		cfg.Analysis.Thresholds.CriticalScore = n
	}
	if n := v.GetInt("analysis.thresholds.high.score"); n != 0 {
		cfg.Analysis.Thresholds.HighScore = n
	}
	if n := v.GetInt("analysis.thresholds.medium.score"); n != 0 {
		cfg.Analysis.Thresholds.MediumScore = n
	}
	if n := v.GetInt("analysis.thresholds.low.score"); n != 0 {
		cfg.Analysis.Thresholds.LowScore = n
	}
	if n := v.GetInt("analysis.thresholds.min.appearances.for.high"); n != 0 {
		cfg.Analysis.Thresholds.MinAppearancesForHigh = n
	}
	if f := v.GetFloat64("analysis.thresholds.view.rate.drop.ratio"); f != 0 {
		cfg.Analysis.Thresholds.ViewRateDropRatio = f
	}
	if f := v.GetFloat64("analysis.thresholds.conversion.drop.ratio"); f != 0 {
		cfg.Analysis.Thresholds.ConversionDropRatio = f
	}
	if f := v.GetFloat64("analysis.thresholds.wow.decline.pct"); f != 0 {
		cfg.Analysis.Thresholds.WowDeclinePct = f
	}
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
	if p := v.GetInt("server.port"); p != 0 {
		cfg.Server.Port = p
	}
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyIngestDefaults(&cfg.Ingest)
	applyAnalysisDefaults(&cfg.Analysis)
	applyInsightsDefaults(&cfg.Insights)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyIngestDefaults(i *IngestConfig) {
	if i.DataDir == "" {
		i.DataDir = "data"
	}
}

func applyAnalysisDefaults(a *AnalysisConfig) {
	if a.Schedule == "" {
		a.Schedule = "0 9 * * MON"
	}
	if a.HistoryWeeks == 0 {
		a.HistoryWeeks = rules.DefaultThresholds().HistoryWeeks
	}
}

func applyInsightsDefaults(i *InsightsConfig) {
	if i.Backend == "" {
		i.Backend = "anthropic"
	}
	if i.Model == "" {
		i.Model = "claude-haiku-4-20250514"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}

	if cfg.Notifications.Slack.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(
			errs,
			fmt.Errorf("notifications.slack.webhook_url is required when slack is enabled"),
		)
	}

	if cfg.Insights.Enabled && cfg.Insights.Backend != "anthropic" {
		errs = append(
			errs,
			fmt.Errorf("insights.backend must be anthropic (got %q)", cfg.Insights.Backend),
		)
	}

	if cfg.Analysis.HistoryWeeks < 2 {
		errs = append(
			errs,
			fmt.Errorf("analysis.history_weeks must be at least 2 (got %d)", cfg.Analysis.HistoryWeeks),
		)
	}

	return errors.Join(errs...)
}
