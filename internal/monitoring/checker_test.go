package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubBreakers map[string]string

func (s stubBreakers) States() map[string]string { return s }

func TestChecker_RunStopsOnCancel(t *testing.T) {
	checker := NewChecker(NewCollector(newTestStore(t), nil, time.Hour), NewAlerter(""), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(newTestStore(t), nil, time.Hour), NewAlerter(""), 0)
	assert.Equal(t, 5*time.Minute, checker.interval)
	assert.Equal(t, time.Hour, checker.repeatAfter)
}

func TestChecker_FilterSuppressesRepeats(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewChecker(nil, NewAlerter(""), time.Minute)
	c.now = func() time.Time { return now }

	drift := Alert{Type: AlertStatusDrift, Count: 2}
	stale := Alert{Type: AlertStaleTasks, Count: 1}

	first := c.filter([]Alert{drift, stale})
	assert.Len(t, first, 2)
	c.mark(first)

	assert.Empty(t, c.filter([]Alert{drift, stale}), "same counts inside the window")

	drift.Count = 3
	assert.Equal(t, []Alert{drift}, c.filter([]Alert{drift, stale}), "count changed")

	now = now.Add(2 * time.Hour)
	assert.Len(t, c.filter([]Alert{stale}), 1, "window elapsed")
	_, tracked := c.sent[AlertStatusDrift]
	assert.False(t, tracked, "cleared condition is forgotten")
}

func TestChecker_CheckDeliversOnce(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := newTestStore(t)
	c := NewChecker(NewCollector(st, stubBreakers{"manus": "open"}, time.Hour), NewAlerter(srv.URL), time.Minute)
	log := zap.NewNop()

	c.check(context.Background(), log)
	c.check(context.Background(), log)
	assert.Equal(t, int32(1), posts.Load())
}
