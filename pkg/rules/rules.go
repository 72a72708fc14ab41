// Package rules implements the severity rule engine: a pure, storage-free
// evaluation of one listing's weekly history into zero or one alert.
package rules

import (
	"fmt"
	"math"
	"sort"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// Thresholds holds every knob of the rule engine. Values are fixed for the
// lifetime of an Engine; construct a new Engine to change them.
type Thresholds struct {
	CriticalScore int
	HighScore     int
	MediumScore   int
	LowScore      int

	MinAppearancesForHigh int
	ViewRateDropRatio     float64
	ConversionDropRatio   float64
	WowDeclinePct         float64
	HistoryWeeks          int
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalScore:         100,
		HighScore:             75,
		MediumScore:           50,
		LowScore:              25,
		MinAppearancesForHigh: 50,
		ViewRateDropRatio:     0.5,
		ConversionDropRatio:   0.5,
		WowDeclinePct:         -30.0,
		HistoryWeeks:          5,
	}
}

// Engine evaluates listing histories against a fixed threshold set.
type Engine struct {
	t Thresholds
}

// NewEngine creates a rule engine with the given thresholds.
func NewEngine(t Thresholds) *Engine {
	return &Engine{t: t}
}

// Thresholds returns the engine's threshold set.
func (e *Engine) Thresholds() Thresholds {
	return e.t
}

// Evaluate analyzes one listing's weekly history and returns an alert for its
// most recent week, or nil when there is not enough history (fewer than two
// weeks) or when no rule triggers. An alert always has SeverityScore > 0.
//
// Rules fire independently and in a fixed order; that order defines the issue
// text order. SeverityLevel is the worst tier among triggered rules regardless
// of order, while SeverityScore is the plain sum of triggered weights. The two
// can disagree on ranking and both are kept.
func (e *Engine) Evaluate(history []domain.WeeklyPerformance) *domain.Alert {
	if len(history) < 2 {
		return nil
	}

	recs := make([]domain.WeeklyPerformance, len(history))
	copy(recs, history)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].WeekStart.Before(recs[j].WeekStart)
	})

	latest := recs[len(recs)-1]
	previous := recs[len(recs)-2]
	historical := recs[:len(recs)-1]

	var sumAppearances, sumViews, sumBookings int
	for i := range historical {
		sumAppearances += historical[i].SearchAppearances
		sumViews += historical[i].ListingViews
		sumBookings += historical[i].Bookings
	}
	n := float64(len(historical))
	avgAppearances := float64(sumAppearances) / n
	avgBookings := float64(sumBookings) / n

	latestViewRate := latest.ViewRate()
	latestConversion := latest.ConversionRate()

	// Pooled ratios over the historical window, not means of per-week ratios.
	avgViewRate := float64(sumViews) / float64(max(sumAppearances, 1))
	avgConversion := float64(sumBookings) / float64(max(sumViews, 1))

	wowChange := float64(latest.SearchAppearances-previous.SearchAppearances) /
		float64(max(previous.SearchAppearances, 1)) * 100

	var findings []domain.Finding

	if latest.SearchAppearances == 0 {
		findings = append(findings, domain.Finding{
			Severity:    domain.SeverityCritical,
			Score:       e.t.CriticalScore,
			Description: "CRITICAL: Zero search appearances, listing may be inactive",
		})
	}

	if latest.SearchAppearances > e.t.MinAppearancesForHigh && latest.Bookings == 0 {
		findings = append(findings, domain.Finding{
			Severity: domain.SeverityHigh,
			Score:    e.t.HighScore,
			Description: fmt.Sprintf(
				"HIGH: No bookings despite %d search appearances", latest.SearchAppearances),
		})
	}

	if latestViewRate < avgViewRate*e.t.ViewRateDropRatio && avgViewRate > 0.01 {
		dropPct := (avgViewRate - latestViewRate) / avgViewRate * 100
		findings = append(findings, domain.Finding{
			Severity: domain.SeverityMedium,
			Score:    e.t.MediumScore,
			Description: fmt.Sprintf(
				"MEDIUM: View rate dropped %.0f%% vs historical average", dropPct),
		})
	}

	if latestConversion < avgConversion*e.t.ConversionDropRatio && avgConversion > 0.01 {
		dropPct := (avgConversion - latestConversion) / avgConversion * 100
		findings = append(findings, domain.Finding{
			Severity: domain.SeverityMedium,
			Score:    e.t.MediumScore,
			Description: fmt.Sprintf(
				"MEDIUM: Conversion rate dropped %.0f%% vs historical average", dropPct),
		})
	}

	if wowChange < e.t.WowDeclinePct {
		findings = append(findings, domain.Finding{
			Severity: domain.SeverityLow,
			Score:    e.t.LowScore,
			Description: fmt.Sprintf(
				"LOW: Search appearances down %.0f%% week-over-week", math.Abs(wowChange)),
		})
	}

	if len(findings) == 0 {
		return nil
	}

	score := 0
	var level domain.Severity
	issues := make([]string, 0, len(findings))
	for _, f := range findings {
		score += f.Score
		level = domain.MaxSeverity(level, f.Severity)
		issues = append(issues, f.Description)
	}
	if score == 0 {
		return nil
	}

	return &domain.Alert{
		ListingID:            latest.ListingID,
		AlertDate:            latest.WeekStart,
		SeverityScore:        score,
		SeverityLevel:        level,
		Issues:               issues,
		LatestAppearances:    latest.SearchAppearances,
		LatestViews:          latest.ListingViews,
		LatestBookings:       latest.Bookings,
		LatestViewRate:       round4(latestViewRate),
		LatestConversionRate: round4(latestConversion),
		AvgAppearances:       round1(avgAppearances),
		AvgBookings:          round1(avgBookings),
		WowChangePct:         round1(wowChange),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
