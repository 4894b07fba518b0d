package enrichment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

// ErrMaxChecks is returned by Watch when the check budget runs out while the
// task is still in flight.
var ErrMaxChecks = eris.New("enrichment: max status checks reached")

// Watcher polls CheckStatus at a fixed interval until the enrichment leaves
// the in-flight state.
type Watcher struct {
	checker   StatusChecker
	interval  time.Duration
	maxChecks int
	after     func(time.Duration) <-chan time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithMaxChecks stops watching after n checks. Zero means no limit.
func WithMaxChecks(n int) WatcherOption {
	return func(w *Watcher) { w.maxChecks = n }
}

// WithTimer replaces time.After, letting tests drive the loop.
func WithTimer(after func(time.Duration) <-chan time.Time) WatcherOption {
	return func(w *Watcher) { w.after = after }
}

// NewWatcher creates a Watcher.
func NewWatcher(checker StatusChecker, interval time.Duration, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		checker:  checker,
		interval: interval,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch checks signalID until its status is no longer manus_processing, the
// context is cancelled, or the check budget is spent. onCheck, if not nil,
// sees every intermediate result. The last result is always returned when
// at least one check succeeded.
func (w *Watcher) Watch(ctx context.Context, signalID string, onCheck func(*StatusResult)) (*StatusResult, error) {
	log := zap.L().With(zap.String("signal_id", signalID))

	var last *StatusResult
	for checks := 1; ; checks++ {
		res, err := w.checker.CheckStatus(ctx, signalID, false)
		if err != nil {
			return last, err
		}
		last = res
		if onCheck != nil {
			onCheck(res)
		}
		if res.Status != model.EnrichmentStatusManusProcessing {
			return res, nil
		}
		if w.maxChecks > 0 && checks >= w.maxChecks {
			return res, ErrMaxChecks
		}

		log.Debug("enrichment: task still running",
			zap.Int("check", checks), zap.String("remote_status", res.RemoteStatus))

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-w.after(w.interval):
		}
	}
}
