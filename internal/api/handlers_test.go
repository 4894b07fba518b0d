package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/enrichment"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/monitoring"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

type stubRequester struct {
	res    *enrichment.RequestResult
	err    error
	called []string
}

func (s *stubRequester) RequestEnrichment(_ context.Context, signalID string) (*enrichment.RequestResult, error) {
	s.called = append(s.called, signalID)
	return s.res, s.err
}

type stubChecker struct {
	res    *enrichment.StatusResult
	err    error
	forced []bool
}

func (s *stubChecker) CheckStatus(_ context.Context, _ string, force bool) (*enrichment.StatusResult, error) {
	s.forced = append(s.forced, force)
	return s.res, s.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestRouter(t *testing.T, st store.Store, req Requester, checker enrichment.StatusChecker) http.Handler {
	t.Helper()
	return NewRouter(NewHandlers(st, req, checker, resilience.NewBreakers(resilience.BreakerConfig{})), []string{"http://localhost:5173"})
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestRequestEnrichment_Accepted(t *testing.T) {
	req := &stubRequester{res: &enrichment.RequestResult{
		Accepted:     true,
		Message:      "enrichment started, poll status-check for completion",
		EnrichmentID: "enr-1",
		Status:       model.EnrichmentStatusManusProcessing,
		Source:       model.SourceManus,
		Handle:       &model.TaskHandle{TaskID: "task-9", TaskURL: "https://manus.im/app/task-9"},
	}}
	h := newTestRouter(t, newTestStore(t), req, &stubChecker{})

	for _, path := range []string{"/functions/enrichment-request", "/api/enrichment/request"} {
		t.Run(path, func(t *testing.T) {
			rec, out := do(t, h, http.MethodPost, path, `{"signal_id":"sig-1"}`)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, true, out["success"])
			assert.Equal(t, "task-9", out["manus_task_id"])
			assert.Equal(t, "https://manus.im/app/task-9", out["manus_task_url"])
			assert.Equal(t, "enr-1", out["enrichment_id"])
			assert.Equal(t, "manus", out["source"])
			assert.NotContains(t, out, "contacts_count")
		})
	}
	assert.Equal(t, []string{"sig-1", "sig-1"}, req.called)
}

func TestRequestEnrichment_SynchronousCount(t *testing.T) {
	n := 4
	req := &stubRequester{res: &enrichment.RequestResult{
		Accepted:      true,
		Message:       "4 contacts found via mock",
		Status:        model.EnrichmentStatusCompleted,
		Source:        model.SourceMock,
		ContactsCount: &n,
	}}
	h := newTestRouter(t, newTestStore(t), req, &stubChecker{})

	_, out := do(t, h, http.MethodPost, "/functions/enrichment-request", `{"signal_id":"sig-1"}`)
	assert.Equal(t, float64(4), out["contacts_count"])
	assert.NotContains(t, out, "manus_task_id")
}

func TestRequestEnrichment_LockHeldIsSoftFailure(t *testing.T) {
	req := &stubRequester{res: &enrichment.RequestResult{Message: "enrichment request already running"}}
	h := newTestRouter(t, newTestStore(t), req, &stubChecker{})

	rec, out := do(t, h, http.MethodPost, "/functions/enrichment-request", `{"signal_id":"sig-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "enrichment request already running", out["message"])
}

func TestRequestEnrichment_BadRequests(t *testing.T) {
	req := &stubRequester{}
	h := newTestRouter(t, newTestStore(t), req, &stubChecker{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"signal_id":`, "invalid request body"},
		{"missing id", `{}`, "signal_id is required"},
		{"blank id", `{"signal_id":"  "}`, "signal_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, h, http.MethodPost, "/functions/enrichment-request", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, out["error"])
		})
	}
	assert.Empty(t, req.called)
}

func TestRequestEnrichment_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", eris.Wrapf(enrichment.ErrNotFound, "signal %s", "sig-x"), http.StatusNotFound},
		{"unexpected", eris.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, newTestStore(t), &stubRequester{err: tt.err}, &stubChecker{})
			rec, out := do(t, h, http.MethodPost, "/functions/enrichment-request", `{"signal_id":"sig-x"}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestCheckStatus_Completed(t *testing.T) {
	total, inserted := 3, 3
	checker := &stubChecker{res: &enrichment.StatusResult{
		Status:        model.EnrichmentStatusCompleted,
		Message:       "3 contacts imported",
		Handle:        &model.TaskHandle{TaskID: "task-9"},
		RemoteStatus:  "completed",
		ContactsCount: &total,
		InsertedCount: &inserted,
		SearchMethod:  "linkedin + site web",
		Company:       &model.CompanyInfo{Domain: "dupont.fr"},
	}}
	h := newTestRouter(t, newTestStore(t), &stubRequester{}, checker)

	rec, out := do(t, h, http.MethodPost, "/functions/status-check", `{"signal_id":"sig-1","force":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", out["status"])
	assert.Equal(t, float64(3), out["contacts_count"])
	assert.Equal(t, float64(3), out["inserted_count"])
	assert.Equal(t, "task-9", out["manus_task_id"])
	assert.Equal(t, "linkedin + site web", out["search_method"])
	assert.Equal(t, map[string]any{"domain": "dupont.fr"}, out["company_info"])
	assert.Equal(t, "completed", out["remote_status"])
	assert.Equal(t, []bool{true}, checker.forced)
}

func TestCheckStatus_ProcessingOmitsEmptyFields(t *testing.T) {
	checker := &stubChecker{res: &enrichment.StatusResult{
		Status:  model.EnrichmentStatusManusProcessing,
		Message: "could not reach the agent, try again later",
		Handle:  &model.TaskHandle{TaskID: "task-9"},
		Company: &model.CompanyInfo{},
	}}
	h := newTestRouter(t, newTestStore(t), &stubRequester{}, checker)

	_, out := do(t, h, http.MethodPost, "/api/enrichment/status", `{"signal_id":"sig-1"}`)
	assert.Equal(t, "manus_processing", out["status"])
	assert.NotContains(t, out, "company_info")
	assert.NotContains(t, out, "contacts_count")
	assert.NotContains(t, out, "error")
	assert.Equal(t, []bool{false}, checker.forced)
}

func TestCheckStatus_NotFound(t *testing.T) {
	h := newTestRouter(t, newTestStore(t), &stubRequester{}, &stubChecker{err: eris.Wrap(enrichment.ErrNotFound, "record for signal sig-x")})
	rec, _ := do(t, h, http.MethodPost, "/functions/status-check", `{"signal_id":"sig-x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func seed(t *testing.T, st store.Store) (*model.Signal, []model.Contact) {
	t.Helper()
	ctx := context.Background()
	sig := &model.Signal{CompanyName: "Traiteur Dupont", SignalType: "anniversaire", Score: 3}
	require.NoError(t, st.CreateSignal(ctx, sig))

	rec := &model.EnrichmentRecord{SignalID: sig.ID, CompanyName: sig.CompanyName, Status: model.EnrichmentStatusProcessing}
	require.NoError(t, st.CreateEnrichment(ctx, rec))

	_, err := st.InsertContactsIfEmpty(ctx, rec.ID, sig.ID, []model.Contact{
		{FullName: "Claire Martin", JobTitle: "Directrice financière", PriorityScore: 3},
		{FullName: "Julie Bernard", JobTitle: "Office Manager", PriorityScore: 5, IsPriorityTarget: true},
	})
	require.NoError(t, err)
	contacts, err := st.ListContacts(ctx, sig.ID)
	require.NoError(t, err)
	return sig, contacts
}

func TestReadPaths(t *testing.T) {
	st := newTestStore(t)
	sig, contacts := seed(t, st)
	h := newTestRouter(t, st, &stubRequester{}, &stubChecker{})

	rec, out := do(t, h, http.MethodGet, "/api/signals/"+sig.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Traiteur Dupont", out["company_name"])

	rec, out = do(t, h, http.MethodGet, "/api/signals/"+sig.ID+"/contacts", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["count"])
	list := out["contacts"].([]any)
	assert.Equal(t, "Julie Bernard", list[0].(map[string]any)["full_name"])

	rec, out = do(t, h, http.MethodGet, "/api/signals/"+sig.ID+"/enrichment", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", out["enrichment"].(map[string]any)["status"])
	assert.Len(t, out["contacts"], len(contacts))
}

func TestReadPaths_NotFound(t *testing.T) {
	h := newTestRouter(t, newTestStore(t), &stubRequester{}, &stubChecker{})
	for _, path := range []string{"/api/signals/missing", "/api/signals/missing/enrichment", "/api/signals/missing/contacts"} {
		rec, _ := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestUpdateOutreach(t *testing.T) {
	st := newTestStore(t)
	_, contacts := seed(t, st)
	h := newTestRouter(t, st, &stubRequester{}, &stubChecker{})
	id := contacts[0].ID

	rec, out := do(t, h, http.MethodPatch, "/api/contacts/"+id+"/outreach", `{"outreach_status":"linkedin_sent"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "linkedin_sent", out["outreach_status"])

	// Any valid value may follow any other.
	rec, out = do(t, h, http.MethodPatch, "/api/contacts/"+id+"/outreach", `{"outreach_status":"new"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", out["outreach_status"])

	rec, _ = do(t, h, http.MethodPatch, "/api/contacts/"+id+"/outreach", `{"outreach_status":"ghosted"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPatch, "/api/contacts/nope/outreach", `{"outreach_status":"meeting"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, newTestStore(t), &stubRequester{}, &stubChecker{})
	rec, out := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Contains(t, out, "providers")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, newTestStore(t), &stubRequester{}, &stubChecker{})
	req := httptest.NewRequest(http.MethodOptions, "/functions/status-check", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMonitoring(t *testing.T) {
	st := newTestStore(t)
	handlers := NewHandlers(st, &stubRequester{}, &stubChecker{}, nil)
	h := NewRouter(handlers, nil)

	rec, _ := do(t, h, http.MethodGet, "/api/monitoring", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seed(t, st)
	handlers.SetCollector(monitoring.NewCollector(st, nil, time.Hour))
	rec, out := do(t, h, http.MethodGet, "/api/monitoring", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), out["in_flight"])
	// Records still in processing are not checked for drift.
	assert.Equal(t, float64(0), out["drifted"])
}
