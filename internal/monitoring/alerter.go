package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hirely/hirely-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQueueBacklog AlertType = "queue_backlog"
	AlertQueueStale   AlertType = "queue_stale"
	AlertOffline      AlertType = "offline"
	AlertCircuitOpen  AlertType = "circuit_open"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	if a.cfg.QueueDepthThreshold > 0 && snap.QueueDepth >= a.cfg.QueueDepthThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertQueueBacklog,
			Severity: "high",
			Message: fmt.Sprintf("%d offline requests queued (threshold %d)",
				snap.QueueDepth, a.cfg.QueueDepthThreshold),
			Details: map[string]any{
				"queue_depth": snap.QueueDepth,
				"retrying":    snap.QueueRetrying,
				"threshold":   a.cfg.QueueDepthThreshold,
			},
			Timestamp: now,
		})
	}

	maxAge := time.Duration(a.cfg.QueueMaxAgeMins) * time.Minute
	if maxAge > 0 && snap.QueueAge() > maxAge {
		alerts = append(alerts, Alert{
			Type:     AlertQueueStale,
			Severity: "medium",
			Message: fmt.Sprintf("oldest queued request is %s old (limit %s)",
				snap.QueueAge().Round(time.Second), maxAge),
			Details: map[string]any{
				"oldest_queued_at": snap.OldestQueuedAt,
				"queue_depth":      snap.QueueDepth,
			},
			Timestamp: now,
		})
	}

	offlineAfter := time.Duration(a.cfg.OfflineAlertAfterSec) * time.Second
	if offlineAfter > 0 && snap.OfflineFor() >= offlineAfter {
		alerts = append(alerts, Alert{
			Type:     AlertOffline,
			Severity: "medium",
			Message:  fmt.Sprintf("offline for %s", snap.OfflineFor().Round(time.Second)),
			Details: map[string]any{
				"offline_since": snap.OfflineSince,
				"queue_depth":   snap.QueueDepth,
			},
			Timestamp: now,
		})
	}

	if len(snap.OpenBreakers) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertCircuitOpen,
			Severity: "high",
			Message:  "circuit open for " + strings.Join(snap.OpenBreakers, ", "),
			Details: map[string]any{
				"services": snap.OpenBreakers,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
