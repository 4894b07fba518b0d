// Package monitoring watches the enrichment workflow for records that need an
// operator: agent tasks that never finish, signals whose status drifted from
// their enrichment record, and completed runs that came back empty.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

const (
	scanLimit = 500
	// maxSampleIDs caps the signal ids carried in a snapshot.
	maxSampleIDs = 20
)

// Snapshot is a point-in-time view of workflow health.
type Snapshot struct {
	InFlight        int      `json:"in_flight"`
	StaleTasks      int      `json:"stale_tasks"`
	StaleSignalIDs  []string `json:"stale_signal_ids,omitempty"`
	StuckProcessing int      `json:"stuck_processing"`

	// Drifted counts signals whose status differs from their record, e.g.
	// after a crash between the two writes.
	Drifted          int      `json:"drifted"`
	DriftedSignalIDs []string `json:"drifted_signal_ids,omitempty"`

	// ResyncCandidates are completed records with a task handle and no
	// contacts.
	ResyncCandidates int `json:"resync_candidates"`

	OpenProviders []string `json:"open_providers,omitempty"`

	StaleAfterHours int       `json:"stale_after_hours"`
	CollectedAt     time.Time `json:"collected_at"`
}

// BreakerStates reports provider circuit states keyed by provider name.
type BreakerStates interface {
	States() map[string]string
}

// Collector gathers a Snapshot from the store.
type Collector struct {
	store      store.Store
	breakers   BreakerStates
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. breakers may be nil.
func NewCollector(st store.Store, breakers BreakerStates, staleAfter time.Duration) *Collector {
	return &Collector{
		store:      st,
		breakers:   breakers,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Collect scans in-flight and completed records.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	now := c.now()
	snap := &Snapshot{
		StaleAfterHours: int(c.staleAfter / time.Hour),
		CollectedAt:     now,
	}
	cutoff := now.Add(-c.staleAfter)

	inflight, err := c.store.ListEnrichmentsByStatus(ctx, model.EnrichmentStatusManusProcessing, scanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list in-flight records")
	}
	snap.InFlight = len(inflight)
	for _, rec := range inflight {
		started := rec.UpdatedAt
		if h := rec.RawData.Handle(); h != nil && h.StartedAt != nil {
			started = *h.StartedAt
		}
		if started.Before(cutoff) {
			snap.StaleTasks++
			snap.StaleSignalIDs = appendSample(snap.StaleSignalIDs, rec.SignalID)
		}
		if err := c.checkDrift(ctx, snap, rec); err != nil {
			return nil, err
		}
	}

	processing, err := c.store.ListEnrichmentsByStatus(ctx, model.EnrichmentStatusProcessing, scanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list processing records")
	}
	for _, rec := range processing {
		if rec.UpdatedAt.Before(cutoff) {
			snap.StuckProcessing++
		}
	}

	completed, err := c.store.ListEnrichmentsByStatus(ctx, model.EnrichmentStatusCompleted, scanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list completed records")
	}
	for _, rec := range completed {
		if err := c.checkDrift(ctx, snap, rec); err != nil {
			return nil, err
		}
		if rec.RawData.Handle() == nil {
			continue
		}
		n, err := c.store.CountContacts(ctx, rec.SignalID)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: count contacts for signal %s", rec.SignalID)
		}
		if n == 0 {
			snap.ResyncCandidates++
		}
	}

	if c.breakers != nil {
		for name, state := range c.breakers.States() {
			if state == "open" {
				snap.OpenProviders = append(snap.OpenProviders, name)
			}
		}
		sort.Strings(snap.OpenProviders)
	}

	return snap, nil
}

func (c *Collector) checkDrift(ctx context.Context, snap *Snapshot, rec model.EnrichmentRecord) error {
	sig, err := c.store.GetSignal(ctx, rec.SignalID)
	if err != nil {
		return eris.Wrapf(err, "monitoring: get signal %s", rec.SignalID)
	}
	if sig != nil && sig.EnrichmentStatus != rec.Status {
		snap.Drifted++
		snap.DriftedSignalIDs = appendSample(snap.DriftedSignalIDs, rec.SignalID)
	}
	return nil
}

func appendSample(ids []string, id string) []string {
	if len(ids) >= maxSampleIDs {
		return ids
	}
	return append(ids, id)
}
