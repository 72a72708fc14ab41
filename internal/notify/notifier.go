// Package notify defines the notification interface and implementations
// for alert delivery.
package notify

import (
	"context"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

// Notifier defines the interface for delivering analysis results.
type Notifier interface {
	// SendAlerts delivers a ranked batch of alerts, optionally with a
	// generated summary attached.
	SendAlerts(ctx context.Context, alerts []domain.Alert, summary string) error
	// SendAllClear reports a run that produced no alerts.
	SendAllClear(ctx context.Context) error
}
