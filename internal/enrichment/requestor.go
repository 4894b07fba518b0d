package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/normalize"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
	"github.com/alexisthb/gourrmet-signals-42-sub000/pkg/manus"
)

// RequestResult is the outcome of RequestEnrichment.
type RequestResult struct {
	// Accepted is false when the call was a no-op (already enriched, already
	// in flight, or another request holds the lock).
	Accepted     bool
	Message      string
	EnrichmentID string
	Status       model.EnrichmentStatus
	Source       model.Source
	Handle       *model.TaskHandle
	// ContactsCount is set when contacts are known at return time:
	// synchronous tiers and the already-enriched no-op.
	ContactsCount *int
}

// Requestor decides whether a signal needs enrichment and dispatches it to
// the first provider tier that accepts it.
type Requestor struct {
	store     store.Store
	providers Providers
	breakers  *resilience.Breakers
	locker    Locker
	retry     resilience.RetryConfig
	now       func() time.Time
}

// RequestorOption configures a Requestor.
type RequestorOption func(*Requestor)

// WithLocker serializes requests per signal.
func WithLocker(l Locker) RequestorOption {
	return func(r *Requestor) { r.locker = l }
}

// WithBreakers shares a breaker registry (e.g. with the health endpoint).
func WithBreakers(b *resilience.Breakers) RequestorOption {
	return func(r *Requestor) { r.breakers = b }
}

// WithRetry overrides the provider retry policy.
func WithRetry(cfg resilience.RetryConfig) RequestorOption {
	return func(r *Requestor) { r.retry = cfg }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RequestorOption {
	return func(r *Requestor) { r.now = now }
}

// NewRequestor creates a Requestor.
func NewRequestor(st store.Store, p Providers, opts ...RequestorOption) *Requestor {
	r := &Requestor{
		store:     st,
		providers: p,
		retry:     resilience.DefaultRetryConfig(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breakers == nil {
		r.breakers = resilience.NewBreakers(resilience.BreakerConfig{})
	}
	return r
}

// RequestEnrichment starts enrichment for a signal. ErrNotFound is the only
// domain error; provider failures fall through to the next tier, ending
// with mock data.
func (r *Requestor) RequestEnrichment(ctx context.Context, signalID string) (*RequestResult, error) {
	log := zap.L().With(zap.String("signal_id", signalID))

	sig, err := r.store.GetSignal(ctx, signalID)
	if err != nil {
		return nil, eris.Wrapf(err, "enrichment: get signal %s", signalID)
	}
	if sig == nil {
		return nil, eris.Wrapf(ErrNotFound, "signal %s", signalID)
	}

	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx, signalID)
		switch {
		case err != nil:
			log.Warn("enrichment: request lock unavailable, continuing unlocked", zap.Error(err))
		case !ok:
			return &RequestResult{Message: "enrichment request already running"}, nil
		default:
			defer unlock()
		}
	}

	rec, done, err := r.begin(ctx, sig)
	if err != nil || done != nil {
		return done, err
	}

	if res, err := r.tryAgent(ctx, log, sig, rec); res != nil || err != nil {
		return res, err
	}

	prompt := BuildCompletionPrompt(sig)
	for _, c := range r.providers.Completers {
		if res, err := r.tryCompleter(ctx, log, rec, c, prompt); res != nil || err != nil {
			return res, err
		}
	}

	return r.completeWith(ctx, rec, model.SourceMock, normalize.Result{Contacts: mockContacts(sig)}, nil)
}

// begin applies the idempotency checks and moves record and signal to
// processing. A non-nil RequestResult means there is nothing to dispatch.
func (r *Requestor) begin(ctx context.Context, sig *model.Signal) (*model.EnrichmentRecord, *RequestResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := r.store.GetEnrichmentBySignal(ctx, sig.ID)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "enrichment: get record for signal %s", sig.ID)
		}

		if rec != nil {
			if done, err := r.existing(ctx, rec); done != nil || err != nil {
				return nil, done, err
			}
			if err := transition(ctx, r.store, rec, model.EnrichmentStatusProcessing, false); err != nil {
				return nil, nil, err
			}
			return rec, nil, nil
		}

		rec = &model.EnrichmentRecord{
			SignalID:    sig.ID,
			CompanyName: sig.CompanyName,
			Status:      model.EnrichmentStatusProcessing,
		}
		err = r.store.CreateEnrichment(ctx, rec)
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a creation race; re-read and re-check.
			continue
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "enrichment: create record for signal %s", sig.ID)
		}
		if err := syncSignalStatus(ctx, r.store, sig.ID, model.EnrichmentStatusProcessing, false); err != nil {
			return nil, nil, err
		}
		return rec, nil, nil
	}
	return nil, nil, eris.Errorf("enrichment: record for signal %s kept changing", sig.ID)
}

// existing answers for a record that must not be dispatched again.
func (r *Requestor) existing(ctx context.Context, rec *model.EnrichmentRecord) (*RequestResult, error) {
	switch {
	case rec.Status == model.EnrichmentStatusCompleted:
		n, err := r.store.CountContacts(ctx, rec.SignalID)
		if err != nil {
			return nil, eris.Wrapf(err, "enrichment: count contacts for signal %s", rec.SignalID)
		}
		return &RequestResult{
			Message:       "signal already enriched",
			EnrichmentID:  rec.ID,
			Status:        rec.Status,
			Source:        rec.Source,
			Handle:        rec.RawData.Handle(),
			ContactsCount: &n,
		}, nil
	case rec.Status == model.EnrichmentStatusManusProcessing && rec.RawData.Handle() != nil:
		return &RequestResult{
			Message:      "enrichment already in progress",
			EnrichmentID: rec.ID,
			Status:       rec.Status,
			Source:       rec.Source,
			Handle:       rec.RawData.Handle(),
		}, nil
	}
	return nil, nil
}

// tryAgent submits the research task. (nil, nil) means fall through.
func (r *Requestor) tryAgent(ctx context.Context, log *zap.Logger, sig *model.Signal, rec *model.EnrichmentRecord) (*RequestResult, error) {
	agent := r.providers.Agent
	if agent == nil {
		log.Info("enrichment: agent not configured, using fallback providers")
		return nil, nil
	}
	br := r.breakers.Get(string(model.SourceManus))
	if err := br.Allow(); err != nil {
		log.Warn("enrichment: agent skipped", zap.Error(err))
		return nil, nil
	}

	req := manus.CreateTaskRequest{
		Prompt:       BuildAgentPrompt(sig),
		AgentProfile: r.providers.AgentProfile,
		TaskMode:     r.providers.TaskMode,
	}
	cfg := r.retry
	if r.providers.SubmitAttempts > 0 {
		cfg.MaxAttempts = r.providers.SubmitAttempts
	}
	cfg.OnRetry = resilience.RetryLogger(string(model.SourceManus), "create_task")

	var last *manus.CreateTaskResponse
	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*manus.CreateTaskResponse, error) {
		resp, err := agent.CreateTask(ctx, req)
		last = resp
		return resp, err
	})
	br.Record(err)
	if err != nil {
		if errors.Is(err, manus.ErrMissingTaskID) && last != nil {
			log.Warn("enrichment: agent accepted the task without an id, falling through",
				zap.String("response", last.Raw))
		} else {
			log.Warn("enrichment: agent submit failed, falling through", zap.Error(err))
		}
		return nil, nil
	}

	started := r.now()
	rec.RawData.SetHandle(model.TaskHandle{TaskID: resp.Identifier(), TaskURL: resp.TaskURL, StartedAt: &started})
	rec.Source = model.SourceManus
	rec.ErrorMessage = ""
	if err := transition(ctx, r.store, rec, model.EnrichmentStatusManusProcessing, false); err != nil {
		return nil, err
	}

	log.Info("enrichment: agent task created",
		zap.String("task_id", resp.Identifier()),
		zap.String("task_url", resp.TaskURL),
	)
	return &RequestResult{
		Accepted:     true,
		Message:      "enrichment started, poll status-check for completion",
		EnrichmentID: rec.ID,
		Status:       rec.Status,
		Source:       rec.Source,
		Handle:       rec.RawData.Handle(),
	}, nil
}

// tryCompleter runs one synchronous provider. An answer without contacts
// counts as a failure so the next tier gets a chance.
func (r *Requestor) tryCompleter(ctx context.Context, log *zap.Logger, rec *model.EnrichmentRecord, c Completer, prompt Prompt) (*RequestResult, error) {
	name := string(c.Name())
	br := r.breakers.Get(name)
	if err := br.Allow(); err != nil {
		log.Warn("enrichment: provider skipped", zap.String("provider", name), zap.Error(err))
		return nil, nil
	}

	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger(name, "complete")
	text, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return c.Complete(ctx, prompt)
	})
	br.Record(err)
	if err != nil {
		log.Warn("enrichment: provider failed, falling through", zap.String("provider", name), zap.Error(err))
		return nil, nil
	}

	res := normalize.Normalize(ctx, json.RawMessage(text), nil)
	if len(res.Contacts) == 0 {
		log.Warn("enrichment: provider returned no contacts, falling through",
			zap.String("provider", name), zap.String("error", res.Error))
		return nil, nil
	}

	output, _ := json.Marshal(text)
	return r.completeWith(ctx, rec, c.Name(), res, output)
}

// completeWith persists a synchronous result and reports the contact count.
func (r *Requestor) completeWith(ctx context.Context, rec *model.EnrichmentRecord, source model.Source, res normalize.Result, output json.RawMessage) (*RequestResult, error) {
	rec.Source = source
	out, err := persist(ctx, r.store, rec, completion{result: res, output: output}, r.now())
	if err != nil {
		return nil, err
	}

	zap.L().Info("enrichment: completed synchronously",
		zap.String("signal_id", rec.SignalID),
		zap.String("source", string(source)),
		zap.Int("inserted", out.Inserted),
		zap.Int("total", out.Total),
	)
	total := out.Total
	return &RequestResult{
		Accepted:      true,
		Message:       fmt.Sprintf("%d contacts found via %s", total, source),
		EnrichmentID:  rec.ID,
		Status:        rec.Status,
		Source:        source,
		ContactsCount: &total,
	}, nil
}
