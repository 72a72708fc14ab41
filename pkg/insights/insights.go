package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// FallbackSummary is delivered when the backend fails; alert delivery
// never waits on, or fails because of, the LLM.
const FallbackSummary = "AI analysis temporarily unavailable. Please review the alert data manually."

const systemMsg = "You are a short-term rental performance analyst. " +
	"You review weekly Airbnb listing metrics and explain, in plain language, " +
	"why listings are underperforming and what the host should do about it. " +
	"Be specific and concise."

// detailLimit caps how many alerts are described in full in the prompt.
const detailLimit = 5

// Generator produces operator-facing summaries of an alert batch.
type Generator struct {
	backend LLMBackend
	logger  *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger for the generator.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a summary generator on top of the given backend.
func NewGenerator(backend LLMBackend, opts ...GeneratorOption) *Generator {
	g := &Generator{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Summarize produces a short prose summary of the alert batch. Backend
// failures degrade to FallbackSummary rather than returning an error, so
// callers can attach the result unconditionally.
func (g *Generator) Summarize(ctx context.Context, alerts []domain.Alert) string {
	if len(alerts) == 0 {
		return "All listings are performing within normal ranges this week."
	}

	resp, err := g.backend.Generate(ctx, GenerateRequest{
		Prompt:    buildPrompt(alerts),
		SystemMsg: systemMsg,
		MaxTokens: 600,
	})
	if err != nil {
		g.logger.Warn("summary generation failed, using fallback",
			"backend", g.backend.Name(),
			"alerts", len(alerts),
			"error", err,
		)
		return FallbackSummary
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return FallbackSummary
	}

	g.logger.Debug("summary generated",
		"backend", g.backend.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return summary
}

func buildPrompt(alerts []domain.Alert) string {
	counts := domain.CountBySeverity(alerts)

	var b strings.Builder
	fmt.Fprintf(&b, "This week's scan flagged %d listing(s): %d critical, %d high, %d medium, %d low.\n\n",
		len(alerts),
		counts[domain.SeverityCritical],
		counts[domain.SeverityHigh],
		counts[domain.SeverityMedium],
		counts[domain.SeverityLow],
	)

	b.WriteString("Worst offenders:\n")
	limit := min(len(alerts), detailLimit)
	for i := range limit {
		a := &alerts[i]
		fmt.Fprintf(&b, "\nListing %s (severity %s, score %d):\n", a.ListingID, a.SeverityLevel, a.SeverityScore)
		for _, issue := range a.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		fmt.Fprintf(&b, "- Latest week: %d search appearances, %d views, %d bookings\n",
			a.LatestAppearances, a.LatestViews, a.LatestBookings)
		fmt.Fprintf(&b, "- Historical averages: %.1f appearances, %.1f bookings per week\n",
			a.AvgAppearances, a.AvgBookings)
	}
	if len(alerts) > detailLimit {
		fmt.Fprintf(&b, "\n(%d additional lower-priority alerts omitted.)\n", len(alerts)-detailLimit)
	}

	b.WriteString("\nRespond in exactly this format:\n")
	b.WriteString("SUMMARY: one or two sentences on the overall picture.\n")
	b.WriteString("ROOT CAUSES: the most likely causes across the flagged listings.\n")
	b.WriteString("ACTION ITEMS: 2-4 concrete steps the host should take this week.\n")
	return b.String()
}
