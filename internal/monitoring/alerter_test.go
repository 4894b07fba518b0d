package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	alerts := NewAlerter("").Evaluate(&Snapshot{InFlight: 4, ResyncCandidates: 2, StaleAfterHours: 6})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate(t *testing.T) {
	snap := &Snapshot{
		InFlight:         3,
		StaleTasks:       2,
		StaleSignalIDs:   []string{"s1", "s2"},
		StuckProcessing:  1,
		Drifted:          1,
		DriftedSignalIDs: []string{"s9"},
		OpenProviders:    []string{"anthropic", "manus"},
		StaleAfterHours:  6,
	}

	alerts := NewAlerter("").Evaluate(snap)
	require.Len(t, alerts, 4)

	assert.Equal(t, AlertStaleTasks, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "2 agent task(s) running for more than 6h")
	assert.Equal(t, []string{"s1", "s2"}, alerts[0].SignalIDs)
	assert.Equal(t, 2, alerts[0].Count)

	assert.Equal(t, AlertStuckProcessing, alerts[1].Type)

	assert.Equal(t, AlertStatusDrift, alerts[2].Type)
	assert.Equal(t, SeverityHigh, alerts[2].Severity)

	assert.Equal(t, AlertProviderOpen, alerts[3].Type)
	assert.Contains(t, alerts[3].Message, "anthropic, manus")
	assert.Equal(t, 2, alerts[3].Count)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var n Notification
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		assert.Equal(t, "gourmet-enrichment", n.Source)
		if assert.Len(t, n.Alerts, 2) {
			assert.Equal(t, AlertStaleTasks, n.Alerts[0].Type)
			assert.Equal(t, AlertStatusDrift, n.Alerts[1].Type)
		}
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAlerter(srv.URL)
	sent := a.SendAlerts(context.Background(), a.Evaluate(&Snapshot{Drifted: 1, StaleTasks: 1}))
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(1), received.Load())
}

func TestAlerter_SendAlerts_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(srv.URL)
	a.retry.InitialBackoff = 1
	assert.Equal(t, 1, a.SendAlerts(context.Background(), a.Evaluate(&Snapshot{Drifted: 1})))
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewAlerter(srv.URL)
	assert.Equal(t, 0, a.SendAlerts(context.Background(), a.Evaluate(&Snapshot{Drifted: 1})))
	assert.Equal(t, int32(1), calls.Load())
}

func TestAlerter_SendAlerts_NoWebhookLogsOnly(t *testing.T) {
	a := NewAlerter("")
	assert.Equal(t, 0, a.SendAlerts(context.Background(), a.Evaluate(&Snapshot{Drifted: 1})))
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}
