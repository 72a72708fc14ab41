// Package engine orchestrates the weekly analysis pipeline: evaluate every
// listing's history, persist the resulting alerts, and deliver them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/donaldgifford/ota-listing-monitor/internal/metrics"
	"github.com/donaldgifford/ota-listing-monitor/internal/notify"
	"github.com/donaldgifford/ota-listing-monitor/internal/store"
	"github.com/donaldgifford/ota-listing-monitor/pkg/rules"
	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

const defaultDeliveryTarget = "slack"

// Summarizer produces a prose summary for an alert batch. Implementations
// must degrade internally; Summarize never fails the pipeline.
type Summarizer interface {
	Summarize(ctx context.Context, alerts []domain.Alert) string
}

// Engine orchestrates analysis, alert persistence, and delivery.
type Engine struct {
	store      store.Store
	rules      *rules.Engine
	notifier   notify.Notifier
	summarizer Summarizer
	log        *slog.Logger

	deliveryTarget string
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	s store.Store,
	n notify.Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		store:          s,
		rules:          rules.NewEngine(rules.DefaultThresholds()),
		notifier:       n,
		log:            slog.Default(),
		deliveryTarget: defaultDeliveryTarget,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithRules sets a custom rule engine.
func WithRules(r *rules.Engine) EngineOption {
	return func(e *Engine) {
		e.rules = r
	}
}

// WithSummarizer attaches a summary generator to the pipeline.
func WithSummarizer(s Summarizer) EngineOption {
	return func(e *Engine) {
		e.summarizer = s
	}
}

// WithDeliveryTarget sets the channel name recorded on persisted alerts.
func WithDeliveryTarget(target string) EngineOption {
	return func(e *Engine) {
		e.deliveryTarget = target
	}
}

// RunAnalysis evaluates every known listing against its recent history and
// returns the triggered alerts ranked by severity score, highest first.
// Listings tie-break in store iteration order, so repeated runs over the
// same data produce the same ranking.
func (eng *Engine) RunAnalysis(ctx context.Context) ([]domain.Alert, error) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	listings, err := eng.store.ListAllListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing all listings: %w", err)
	}

	historyWeeks := eng.rules.Thresholds().HistoryWeeks

	var alerts []domain.Alert
	for _, id := range listings {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		history, err := eng.store.GetListingHistory(ctx, id, historyWeeks)
		if err != nil {
			return nil, fmt.Errorf("loading history for listing %s: %w", id, err)
		}

		metrics.ListingsAnalyzedTotal.Inc()

		alert := eng.rules.Evaluate(history)
		if alert == nil {
			continue
		}

		metrics.SeverityScoreDistribution.Observe(float64(alert.SeverityScore))
		alerts = append(alerts, *alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].SeverityScore > alerts[j].SeverityScore
	})

	eng.log.Info("analysis complete",
		"listings", len(listings),
		"alerts", len(alerts),
	)
	return alerts, nil
}

// SaveAlerts persists the batch for its most recent alert date. Alerts for
// older dates are discarded: they describe weeks that have already been
// analyzed and alerted on. Listings already alerted for that date are
// skipped; if the existing-alert lookup fails, the whole batch is inserted
// anyway and the unique constraint absorbs the duplicates, because missing
// an alert is worse than retrying one.
//
// The returned slice is the batch for the latest date (including alerts
// that were already present); the int is how many rows were newly inserted.
func (eng *Engine) SaveAlerts(ctx context.Context, alerts []domain.Alert) ([]domain.Alert, int, error) {
	if len(alerts) == 0 {
		return nil, 0, nil
	}

	var latest time.Time
	for i := range alerts {
		if alerts[i].AlertDate.After(latest) {
			latest = alerts[i].AlertDate
		}
	}

	batch := make([]domain.Alert, 0, len(alerts))
	for i := range alerts {
		if alerts[i].AlertDate.Equal(latest) {
			a := alerts[i]
			a.AlertSentTo = eng.deliveryTarget
			batch = append(batch, a)
		}
	}
	if dropped := len(alerts) - len(batch); dropped > 0 {
		eng.log.Info("dropped alerts for stale dates",
			"dropped", dropped,
			"alert_date", latest.Format(time.DateOnly),
		)
	}

	toInsert := batch
	existing, err := eng.store.AlertedListings(ctx, latest)
	if err != nil {
		eng.log.Warn("existing-alert lookup failed, inserting full batch",
			"alert_date", latest.Format(time.DateOnly),
			"error", err,
		)
	} else if len(existing) > 0 {
		toInsert = make([]domain.Alert, 0, len(batch))
		for i := range batch {
			if _, ok := existing[batch[i].ListingID]; ok {
				continue
			}
			toInsert = append(toInsert, batch[i])
		}
	}

	inserted, err := eng.store.AppendAlerts(ctx, toInsert)
	if err != nil {
		return nil, 0, fmt.Errorf("persisting alerts: %w", err)
	}

	for i := range toInsert {
		metrics.AlertsFiredTotal.WithLabelValues(string(toInsert[i].SeverityLevel)).Inc()
	}

	eng.log.Info("alerts saved",
		"alert_date", latest.Format(time.DateOnly),
		"batch", len(batch),
		"inserted", inserted,
	)
	return batch, inserted, nil
}

// RunPipeline executes one full analysis cycle: evaluate, persist, then
// deliver. Persistence keeps only the batch's latest alert date, but the
// summary and the notification cover the full ranked result: a listing whose
// newest ingested week lags the rest still gets reported. Persistence
// failures abort the run; summary and delivery failures are logged and
// absorbed, since the alert ledger is already written by then.
func (eng *Engine) RunPipeline(ctx context.Context) error {
	alerts, err := eng.RunAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}

	if _, _, err := eng.SaveAlerts(ctx, alerts); err != nil {
		return fmt.Errorf("saving alerts: %w", err)
	}

	if len(alerts) == 0 {
		if err := eng.notifier.SendAllClear(ctx); err != nil {
			metrics.NotificationFailuresTotal.Inc()
			eng.log.Error("all-clear delivery failed", "error", err)
		}
		return nil
	}

	var summary string
	if eng.summarizer != nil {
		summary = eng.summarizer.Summarize(ctx, alerts)
	}

	if err := eng.notifier.SendAlerts(ctx, alerts, summary); err != nil {
		metrics.NotificationFailuresTotal.Inc()
		eng.log.Error("alert delivery failed", "alerts", len(alerts), "error", err)
	}
	return nil
}
