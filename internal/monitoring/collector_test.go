package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedRecord creates a signal and its record. The signal mirrors the record
// unless drift is set.
func seedRecord(t *testing.T, st store.Store, status model.EnrichmentStatus, raw model.RawData, drift bool) string {
	t.Helper()
	ctx := context.Background()
	sig := &model.Signal{CompanyName: "Société " + string(status), SignalType: "levee_fonds", Score: 3}
	require.NoError(t, st.CreateSignal(ctx, sig))
	rec := &model.EnrichmentRecord{SignalID: sig.ID, CompanyName: sig.CompanyName, Status: status, RawData: raw}
	require.NoError(t, st.CreateEnrichment(ctx, rec))
	if !drift {
		require.NoError(t, st.UpdateSignalEnrichmentStatus(ctx, sig.ID, status))
	}
	return sig.ID
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()
	old := now.Add(-10 * time.Hour)

	staleID := seedRecord(t, st, model.EnrichmentStatusManusProcessing,
		model.RawData{TaskID: "t-old", StartedAt: &old}, false)
	seedRecord(t, st, model.EnrichmentStatusManusProcessing,
		model.RawData{TaskID: "t-new", StartedAt: &now}, false)
	driftID := seedRecord(t, st, model.EnrichmentStatusCompleted,
		model.RawData{TaskID: "t-empty"}, true)
	seedRecord(t, st, model.EnrichmentStatusCompleted, model.RawData{}, false)

	breakers := resilience.NewBreakers(resilience.BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	breakers.Get("gemini").Record(eris.New("boom"))
	breakers.Get("anthropic")

	c := NewCollector(st, breakers, 6*time.Hour)
	snap, err := c.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.InFlight)
	assert.Equal(t, 1, snap.StaleTasks)
	assert.Equal(t, []string{staleID}, snap.StaleSignalIDs)
	assert.Equal(t, 1, snap.Drifted)
	assert.Equal(t, []string{driftID}, snap.DriftedSignalIDs)
	assert.Equal(t, 1, snap.ResyncCandidates)
	assert.Equal(t, 0, snap.StuckProcessing)
	assert.Equal(t, []string{"gemini"}, snap.OpenProviders)
	assert.Equal(t, 6, snap.StaleAfterHours)
}

func TestCollect_StuckProcessing(t *testing.T) {
	st := newTestStore(t)
	seedRecord(t, st, model.EnrichmentStatusProcessing, model.RawData{}, false)

	c := NewCollector(st, nil, time.Hour)
	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.StuckProcessing)

	c.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	snap, err = c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.StuckProcessing)
	assert.Empty(t, snap.OpenProviders)
}

func TestCollect_ContactsClearResyncCandidate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id := seedRecord(t, st, model.EnrichmentStatusCompleted, model.RawData{TaskID: "t-1"}, false)

	rec, err := st.GetEnrichmentBySignal(ctx, id)
	require.NoError(t, err)
	_, err = st.InsertContactsIfEmpty(ctx, rec.ID, id, []model.Contact{{FullName: "Claire Martin", PriorityScore: 5}})
	require.NoError(t, err)

	snap, err := NewCollector(st, nil, time.Hour).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ResyncCandidates)
}

func TestAppendSample_Caps(t *testing.T) {
	var ids []string
	for i := 0; i < maxSampleIDs+5; i++ {
		ids = appendSample(ids, "x")
	}
	assert.Len(t, ids, maxSampleIDs)
}
