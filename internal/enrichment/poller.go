package enrichment

import (
	"context"
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

// ExpiredTaskError is reported (as StatusResult.Error) when a task handle is
// past its TTL or the agent no longer knows the task.
const ExpiredTaskError = "agent task expired"

// StatusResult is the outcome of CheckStatus.
type StatusResult struct {
	Status        model.EnrichmentStatus
	Message       string
	Handle        *model.TaskHandle
	RemoteStatus  string
	ContactsCount *int
	InsertedCount *int
	SearchMethod  string
	Company       *model.CompanyInfo
	// Error is informational: an agent-reported problem or an expired task.
	Error string
}

// Poller checks the external agent for task completion and persists the
// output when it is done.
type Poller struct {
	store store.Store
	agent manus.Client
	ttl   time.Duration
	retry resilience.RetryConfig
	now   func() time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerClock overrides time.Now.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// WithFileRetry overrides the retry policy for output file downloads.
func WithFileRetry(cfg resilience.RetryConfig) PollerOption {
	return func(p *Poller) { p.retry = cfg }
}

// NewPoller creates a Poller. The agent client comes from p.Agent and may
// be nil, in which case in-flight tasks cannot be checked.
func NewPoller(st store.Store, p Providers, opts ...PollerOption) *Poller {
	pl := &Poller{
		store: st,
		agent: p.Agent,
		ttl:   p.TaskTTL,
		retry: resilience.DefaultRetryConfig(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// CheckStatus reports the enrichment state of a signal. When the agent task
// has finished, its output is normalized and persisted before returning.
// force re-runs extraction on an already completed record.
func (p *Poller) CheckStatus(ctx context.Context, signalID string, force bool) (*StatusResult, error) {
	log := zap.L().With(zap.String("signal_id", signalID))

	rec, err := p.store.GetEnrichmentBySignal(ctx, signalID)
	if err != nil {
		return nil, eris.Wrapf(err, "enrichment: get record for signal %s", signalID)
	}
	if rec == nil {
		return nil, eris.Wrapf(ErrNotFound, "enrichment for signal %s", signalID)
	}

	handle := rec.RawData.Handle()
	if handle == nil {
		res, err := p.stored(ctx, rec)
		if err != nil {
			return nil, err
		}
		res.Message = "no agent task associated with this enrichment"
		return res, nil
	}

	if rec.Status == model.EnrichmentStatusCompleted && !force {
		res, err := p.stored(ctx, rec)
		if err != nil {
			return nil, err
		}
		res.Message = "enrichment completed"
		return res, nil
	}

	if force && p.expired(handle) {
		log.Info("enrichment: resync refused, task past ttl", zap.String("task_id", handle.TaskID))
		return p.expiredResult(ctx, rec)
	}

	if p.agent == nil {
		res, err := p.stored(ctx, rec)
		if err != nil {
			return nil, err
		}
		res.Message = "agent not configured, cannot check task"
		return res, nil
	}

	task, err := p.agent.GetTask(ctx, handle.TaskID)
	if manus.IsNotFound(err) {
		log.Warn("enrichment: agent no longer knows the task", zap.String("task_id", handle.TaskID))
		return p.expiredResult(ctx, rec)
	}
	if err != nil {
		log.Warn("enrichment: status check failed, reporting still running",
			zap.String("task_id", handle.TaskID), zap.Error(err))
		return &StatusResult{
			Status:  model.EnrichmentStatusManusProcessing,
			Handle:  handle,
			Message: "could not reach the agent, try again later",
		}, nil
	}

	if !task.IsFinished() {
		return &StatusResult{
			Status:       model.EnrichmentStatusManusProcessing,
			Handle:       handle,
			RemoteStatus: task.Status,
			Message:      "agent task still running",
		}, nil
	}

	return p.finish(ctx, log, rec, task, force)
}

// finish extracts and persists the output of a finished task.
func (p *Poller) finish(ctx context.Context, log *zap.Logger, rec *model.EnrichmentRecord, task *manus.Task, force bool) (*StatusResult, error) {
	res := normalize.Normalize(ctx, task.Output, &retryingFetcher{client: p.agent, retry: p.retry})
	if res.FileErr != nil {
		log.Warn("enrichment: output file unavailable, using inline output",
			zap.String("file_url", res.FileURL), zap.Error(res.FileErr))
	}

	var agentErr string
	if task.IsFailed() {
		agentErr = task.Error
		if agentErr == "" {
			agentErr = "agent task " + task.Status
		}
	}

	out, err := persist(ctx, p.store, rec, completion{
		result:       res,
		output:       task.Output,
		agentErr:     agentErr,
		remoteStatus: task.Status,
		force:        force,
	}, p.now())
	if err != nil {
		return nil, err
	}

	log.Info("enrichment: agent task completed",
		zap.String("task_id", task.ID),
		zap.String("remote_status", task.Status),
		zap.Int("extracted", len(res.Contacts)),
		zap.String("origin", string(res.Origin)),
		zap.Int("inserted", out.Inserted),
		zap.Int("total", out.Total),
		zap.Bool("force", force),
	)

	company := rec.Company
	total, inserted := out.Total, out.Inserted
	return &StatusResult{
		Status:        model.EnrichmentStatusCompleted,
		Handle:        rec.RawData.Handle(),
		RemoteStatus:  task.Status,
		ContactsCount: &total,
		InsertedCount: &inserted,
		SearchMethod:  rec.RawData.SearchMethod,
		Company:       &company,
		Error:         out.Error,
		Message:       completionMessage(len(res.Contacts), out),
	}, nil
}

func completionMessage(extracted int, out persisted) string {
	switch {
	case out.Inserted > 0:
		return fmt.Sprintf("%d contacts imported", out.Inserted)
	case extracted > 0 && out.Total > 0:
		return "contacts already synced"
	case out.Total > 0:
		return fmt.Sprintf("no new contacts, %d already stored", out.Total)
	}
	return "enrichment completed without contacts"
}

func (p *Poller) expired(h *model.TaskHandle) bool {
	if p.ttl <= 0 || h.StartedAt == nil {
		return false
	}
	return p.now().Sub(*h.StartedAt) > p.ttl
}

func (p *Poller) expiredResult(ctx context.Context, rec *model.EnrichmentRecord) (*StatusResult, error) {
	res, err := p.stored(ctx, rec)
	if err != nil {
		return nil, err
	}
	res.Error = ExpiredTaskError
	res.Message = "the agent task can no longer be checked"
	return res, nil
}

// stored answers from the record without contacting the agent.
func (p *Poller) stored(ctx context.Context, rec *model.EnrichmentRecord) (*StatusResult, error) {
	res := &StatusResult{
		Status:       rec.Status,
		Handle:       rec.RawData.Handle(),
		RemoteStatus: rec.RawData.RemoteStatus,
		SearchMethod: rec.RawData.SearchMethod,
		Error:        rec.ErrorMessage,
	}
	if !rec.Company.IsEmpty() {
		company := rec.Company
		res.Company = &company
	}
	if rec.Status == model.EnrichmentStatusCompleted {
		n, err := p.store.CountContacts(ctx, rec.SignalID)
		if err != nil {
			return nil, eris.Wrapf(err, "enrichment: count contacts for signal %s", rec.SignalID)
		}
		res.ContactsCount = &n
	}
	return res, nil
}

// retryingFetcher downloads output files with retry on transient failures.
type retryingFetcher struct {
	client manus.Client
	retry  resilience.RetryConfig
}

func (f *retryingFetcher) FetchFile(ctx context.Context, fileURL string) ([]byte, error) {
	cfg := f.retry
	cfg.OnRetry = resilience.RetryLogger(string(model.SourceManus), "fetch_file")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return f.client.FetchFile(ctx, fileURL)
	})
}
