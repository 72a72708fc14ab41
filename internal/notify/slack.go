package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// Slack renders at most this many alerts per message; the rest are
// summarized in a trailing line.
const maxAlertBlocks = 10

const listingURLFormat = "https://www.airbnb.com/rooms/%s"

var severityEmoji = map[domain.Severity]string{
	domain.SeverityCritical: "\U0001F534", // red circle
	domain.SeverityHigh:     "\U0001F7E0", // orange circle
	domain.SeverityMedium:   "\U0001F7E1", // yellow circle
	domain.SeverityLow:      "\U0001F535", // blue circle
}

// SlackNotifier implements Notifier via Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a new SlackNotifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SlackOption configures a SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// slackMessage is the Block Kit webhook JSON structure.
type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type      string       `json:"type"`
	Text      *slackText   `json:"text,omitempty"`
	Elements  []slackText  `json:"elements,omitempty"`
	Accessory *slackButton `json:"accessory,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackButton struct {
	Type string     `json:"type"`
	Text *slackText `json:"text"`
	URL  string     `json:"url"`
}

// SendAlerts delivers the ranked alert batch as one Block Kit message.
// Alerts beyond the block limit are collapsed into a count line so the
// message never exceeds Slack's 50-block cap.
func (s *SlackNotifier) SendAlerts(ctx context.Context, alerts []domain.Alert, summary string) error {
	if len(alerts) == 0 {
		return s.SendAllClear(ctx)
	}
	return s.post(ctx, buildAlertMessage(alerts, summary))
}

// SendAllClear reports a run with nothing to flag.
func (s *SlackNotifier) SendAllClear(ctx context.Context) error {
	msg := slackMessage{
		Text: "All listings healthy",
		Blocks: []slackBlock{
			section(":white_check_mark: *Weekly listing check complete.* All listings are performing within normal ranges."),
		},
	}
	return s.post(ctx, msg)
}

func buildAlertMessage(alerts []domain.Alert, summary string) slackMessage {
	counts := domain.CountBySeverity(alerts)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: ":rotating_light: Listing Performance Alerts"},
		},
		section(fmt.Sprintf("*%d listing(s)* need attention this week.", len(alerts))),
	}

	if summary != "" {
		blocks = append(blocks,
			section("*Analysis*"),
			section(fmt.Sprintf("```%s```", summary)),
		)
	}

	limit := min(len(alerts), maxAlertBlocks)
	for i := range limit {
		blocks = append(blocks, alertBlock(&alerts[i]))
	}

	if len(alerts) > maxAlertBlocks {
		blocks = append(blocks, section(fmt.Sprintf("_... and %d more lower-priority alert(s)._", len(alerts)-maxAlertBlocks)))
	}

	blocks = append(blocks, slackBlock{
		Type: "context",
		Elements: []slackText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("Critical: %d | High: %d | Medium: %d | Low: %d",
				counts[domain.SeverityCritical],
				counts[domain.SeverityHigh],
				counts[domain.SeverityMedium],
				counts[domain.SeverityLow],
			),
		}},
	})

	return slackMessage{
		Text:   fmt.Sprintf("%d listing alert(s)", len(alerts)),
		Blocks: blocks,
	}
}

func alertBlock(alert *domain.Alert) slackBlock {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *Listing %s* (score %d, %s)\n",
		severityEmoji[alert.SeverityLevel], alert.ListingID, alert.SeverityScore, alert.SeverityLevel)
	for _, issue := range alert.Issues {
		fmt.Fprintf(&b, "• %s\n", issue)
	}
	fmt.Fprintf(&b, "Appearances: %d | Views: %d | Bookings: %d",
		alert.LatestAppearances, alert.LatestViews, alert.LatestBookings)

	return slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: b.String()},
		Accessory: &slackButton{
			Type: "button",
			Text: &slackText{Type: "plain_text", Text: "View Listing"},
			URL:  fmt.Sprintf(listingURLFormat, alert.ListingID),
		},
	}
}

func section(text string) slackBlock {
	return slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: text},
	}
}

func (s *SlackNotifier) post(ctx context.Context, msg slackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("slack rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("slack returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
