package enrichment

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
	"github.com/alexisthb/gourrmet-signals-42-sub000/pkg/manus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

// recordingStore captures every status written to signals.
type recordingStore struct {
	store.Store
	mu      sync.Mutex
	history map[string][]model.EnrichmentStatus
}

func (s *recordingStore) UpdateSignalEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error {
	s.mu.Lock()
	s.history[id] = append(s.history[id], status)
	s.mu.Unlock()
	return s.Store.UpdateSignalEnrichmentStatus(ctx, id, status)
}

func (s *recordingStore) statuses(id string) []model.EnrichmentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.EnrichmentStatus(nil), s.history[id]...)
}

func newTestStore(t *testing.T) *recordingStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return &recordingStore{Store: st, history: map[string][]model.EnrichmentStatus{}}
}

func seedSignal(t *testing.T, st store.Store, company string) *model.Signal {
	t.Helper()
	sig := &model.Signal{CompanyName: company, SignalType: "levee_fonds", EventDetail: "Série B de 12 M€", Score: 4}
	require.NoError(t, st.CreateSignal(context.Background(), sig))
	return sig
}

// fakeAgent is an in-memory manus.Client.
type fakeAgent struct {
	mu sync.Mutex

	createResp *manus.CreateTaskResponse
	createErr  error
	creates    []manus.CreateTaskRequest

	tasks   map[string]*manus.Task
	getErr  error
	gets    int
	files   map[string]string
	fileErr error
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		createResp: &manus.CreateTaskResponse{ID: "t1", TaskURL: "https://manus.im/app/t1"},
		tasks:      map[string]*manus.Task{},
		files:      map[string]string{},
	}
}

func (a *fakeAgent) CreateTask(_ context.Context, req manus.CreateTaskRequest) (*manus.CreateTaskResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creates = append(a.creates, req)
	return a.createResp, a.createErr
}

func (a *fakeAgent) GetTask(_ context.Context, id string) (*manus.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gets++
	if a.getErr != nil {
		return nil, a.getErr
	}
	task, ok := a.tasks[id]
	if !ok {
		return nil, &manus.APIError{StatusCode: 404, Body: "task not found"}
	}
	cp := *task
	return &cp, nil
}

func (a *fakeAgent) FetchFile(_ context.Context, fileURL string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fileErr != nil {
		return nil, a.fileErr
	}
	body, ok := a.files[fileURL]
	if !ok {
		return nil, &manus.APIError{StatusCode: 404, Body: "no file"}
	}
	return []byte(body), nil
}

func (a *fakeAgent) setTask(task *manus.Task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks[task.ID] = task
}

func (a *fakeAgent) createCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.creates)
}

// fakeCompleter returns a canned answer.
type fakeCompleter struct {
	name   model.Source
	answer string
	err    error
	calls  int
}

func (c *fakeCompleter) Name() model.Source { return c.name }

func (c *fakeCompleter) Complete(_ context.Context, _ Prompt) (string, error) {
	c.calls++
	return c.answer, c.err
}

// fakeLocker grants each key once.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (l *fakeLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return func() {}, false, l.err
	}
	if l.held[key] {
		return func() {}, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

func newRequestor(st store.Store, p Providers, opts ...RequestorOption) *Requestor {
	opts = append([]RequestorOption{WithRetry(noRetry()), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewRequestor(st, p, opts...)
}

func newPoller(st store.Store, p Providers, now time.Time) *Poller {
	return NewPoller(st, p, WithFileRetry(noRetry()), WithPollerClock(func() time.Time { return now }))
}
