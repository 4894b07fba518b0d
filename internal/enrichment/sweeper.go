package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

// sweepBatch caps how many in-flight records one sweep looks at.
const sweepBatch = 500

// SweepReport summarizes one sweep.
type SweepReport struct {
	Checked   int
	Completed int
	Pending   int
	Failed    int
}

// Sweeper checks every in-flight enrichment so tasks complete even when no
// client is polling.
type Sweeper struct {
	store       store.Store
	checker     StatusChecker
	concurrency int
}

// NewSweeper creates a Sweeper running at most concurrency checks at once.
func NewSweeper(st store.Store, checker StatusChecker, concurrency int) *Sweeper {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sweeper{store: st, checker: checker, concurrency: concurrency}
}

// Sweep checks all manus_processing records once. A failing check is logged
// and counted; it does not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	recs, err := s.store.ListEnrichmentsByStatus(ctx, model.EnrichmentStatusManusProcessing, sweepBatch)
	if err != nil {
		return SweepReport{}, eris.Wrap(err, "enrichment: list in-flight records")
	}

	var (
		mu     sync.Mutex
		report SweepReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, rec := range recs {
		signalID := rec.SignalID
		g.Go(func() error {
			res, err := s.checker.CheckStatus(gctx, signalID, false)

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			switch {
			case err != nil:
				report.Failed++
				zap.L().Warn("enrichment: sweep check failed", zap.String("signal_id", signalID), zap.Error(err))
			case res.Status == model.EnrichmentStatusCompleted:
				report.Completed++
			default:
				report.Pending++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if report.Checked > 0 {
		zap.L().Info("enrichment: sweep done",
			zap.Int("checked", report.Checked),
			zap.Int("completed", report.Completed),
			zap.Int("pending", report.Pending),
			zap.Int("failed", report.Failed),
		)
	}
	return report, ctx.Err()
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Error("enrichment: sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
