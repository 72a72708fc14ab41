package notify

import (
	"context"
	"log/slog"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// NoOpNotifier implements Notifier by logging discarded messages. It is
// used when Slack (or another delivery backend) is not configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards messages with a log line.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// SendAlerts logs and discards an alert batch.
func (n *NoOpNotifier) SendAlerts(_ context.Context, alerts []domain.Alert, _ string) error {
	n.log.Debug("notification discarded (no backend configured)",
		"alerts", len(alerts),
	)
	return nil
}

// SendAllClear logs and discards an all-clear message.
func (n *NoOpNotifier) SendAllClear(context.Context) error {
	n.log.Debug("all-clear notification discarded (no backend configured)")
	return nil
}
