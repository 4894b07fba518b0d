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

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
)

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	AlertStaleTasks      AlertType = "stale_agent_tasks"
	AlertStuckProcessing AlertType = "stuck_processing"
	AlertStatusDrift     AlertType = "status_drift"
	AlertProviderOpen    AlertType = "provider_circuit_open"
)

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is one raised condition. Count is what the condition measured, so a
// repeat with a different count is news.
type Alert struct {
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	SignalIDs []string  `json:"signal_ids,omitempty"`
	Providers []string  `json:"providers,omitempty"`
}

// Notification is the webhook body: every alert from one check.
type Notification struct {
	Source      string    `json:"source"`
	CollectedAt time.Time `json:"collected_at"`
	Alerts      []Alert   `json:"alerts"`
}

type rule func(*Snapshot) (Alert, bool)

var rules = []rule{
	func(s *Snapshot) (Alert, bool) {
		return Alert{
			Type:      AlertStaleTasks,
			Severity:  SeverityMedium,
			Message:   fmt.Sprintf("%d agent task(s) running for more than %dh", s.StaleTasks, s.StaleAfterHours),
			Count:     s.StaleTasks,
			SignalIDs: s.StaleSignalIDs,
		}, s.StaleTasks > 0
	},
	func(s *Snapshot) (Alert, bool) {
		return Alert{
			Type:     AlertStuckProcessing,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("%d enrichment request(s) stuck in processing for more than %dh", s.StuckProcessing, s.StaleAfterHours),
			Count:    s.StuckProcessing,
		}, s.StuckProcessing > 0
	},
	func(s *Snapshot) (Alert, bool) {
		return Alert{
			Type:      AlertStatusDrift,
			Severity:  SeverityHigh,
			Message:   fmt.Sprintf("%d signal(s) disagree with their enrichment status, run a forced status check", s.Drifted),
			Count:     s.Drifted,
			SignalIDs: s.DriftedSignalIDs,
		}, s.Drifted > 0
	},
	func(s *Snapshot) (Alert, bool) {
		return Alert{
			Type:      AlertProviderOpen,
			Severity:  SeverityHigh,
			Message:   "provider circuit open: " + strings.Join(s.OpenProviders, ", "),
			Count:     len(s.OpenProviders),
			Providers: s.OpenProviders,
		}, len(s.OpenProviders) > 0
	},
}

// Alerter turns snapshots into alerts and delivers them to an optional
// webhook.
type Alerter struct {
	webhookURL string
	client     *http.Client
	retry      resilience.RetryConfig
}

// NewAlerter creates an Alerter. With an empty webhookURL alerts are only
// logged.
func NewAlerter(webhookURL string) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		retry:      resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Second},
	}
}

// Evaluate returns the alerts raised by snap, in a fixed order.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	for _, r := range rules {
		if alert, ok := r(snap); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// SendAlerts posts all alerts in one notification and returns how many were
// delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	for _, alert := range alerts {
		zap.L().Warn("monitoring: alert",
			zap.String("type", string(alert.Type)),
			zap.String("severity", string(alert.Severity)),
			zap.String("message", alert.Message),
		)
	}
	if a.webhookURL == "" {
		return 0
	}

	n := Notification{Source: "gourmet-enrichment", CollectedAt: time.Now().UTC(), Alerts: alerts}
	cfg := a.retry
	cfg.OnRetry = resilience.RetryLogger("webhook", "send_alerts")
	if err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return a.post(ctx, n)
	}); err != nil {
		zap.L().Error("monitoring: webhook delivery failed", zap.Int("alerts", len(alerts)), zap.Error(err))
		return 0
	}
	return len(alerts)
}

func (a *Alerter) post(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		err := eris.Errorf("monitoring: webhook answered %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
