package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/enrichment"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

type signalRequest struct {
	SignalID string `json:"signal_id"`
	Force    bool   `json:"force,omitempty"`
}

type enrichmentResponse struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	ManusTaskID   string       `json:"manus_task_id,omitempty"`
	ManusTaskURL  string       `json:"manus_task_url,omitempty"`
	EnrichmentID  string       `json:"enrichment_id,omitempty"`
	ContactsCount *int         `json:"contacts_count,omitempty"`
	Source        model.Source `json:"source,omitempty"`
}

type statusResponse struct {
	Status        model.EnrichmentStatus `json:"status"`
	ContactsCount *int                   `json:"contacts_count,omitempty"`
	InsertedCount *int                   `json:"inserted_count,omitempty"`
	ManusTaskID   string                 `json:"manus_task_id,omitempty"`
	ManusTaskURL  string                 `json:"manus_task_url,omitempty"`
	SearchMethod  string                 `json:"search_method,omitempty"`
	CompanyInfo   *model.CompanyInfo     `json:"company_info,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Message       string                 `json:"message"`
	RemoteStatus  string                 `json:"remote_status,omitempty"`
}

type enrichmentView struct {
	Enrichment *model.EnrichmentRecord `json:"enrichment"`
	Contacts   []model.Contact         `json:"contacts"`
}

// decodeSignalRequest reads {signal_id, force?}. It writes the 400 itself and
// returns false when the body is unusable.
func decodeSignalRequest(w http.ResponseWriter, r *http.Request) (signalRequest, bool) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	req.SignalID = strings.TrimSpace(req.SignalID)
	if req.SignalID == "" {
		respondError(w, http.StatusBadRequest, "signal_id is required")
		return req, false
	}
	return req, true
}

// RequestEnrichment handles POST enrichment-request.
func (h *Handlers) RequestEnrichment(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSignalRequest(w, r)
	if !ok {
		return
	}

	res, err := h.requester.RequestEnrichment(r.Context(), req.SignalID)
	if err != nil {
		respondFailure(w, err, "enrichment request failed", req.SignalID)
		return
	}

	out := enrichmentResponse{
		// A no-op on a known record is still a successful answer; only a
		// request turned away by the lock reports failure.
		Success:       res.Accepted || res.Status != model.EnrichmentStatusNone,
		Message:       res.Message,
		EnrichmentID:  res.EnrichmentID,
		ContactsCount: res.ContactsCount,
		Source:        res.Source,
	}
	if res.Handle != nil {
		out.ManusTaskID = res.Handle.TaskID
		out.ManusTaskURL = res.Handle.TaskURL
	}
	respondJSON(w, http.StatusOK, out)
}

// CheckStatus handles POST status-check.
func (h *Handlers) CheckStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSignalRequest(w, r)
	if !ok {
		return
	}

	res, err := h.checker.CheckStatus(r.Context(), req.SignalID, req.Force)
	if err != nil {
		respondFailure(w, err, "status check failed", req.SignalID)
		return
	}
	respondJSON(w, http.StatusOK, toStatusResponse(res))
}

func toStatusResponse(res *enrichment.StatusResult) statusResponse {
	out := statusResponse{
		Status:        res.Status,
		ContactsCount: res.ContactsCount,
		InsertedCount: res.InsertedCount,
		SearchMethod:  res.SearchMethod,
		Error:         res.Error,
		Message:       res.Message,
		RemoteStatus:  res.RemoteStatus,
	}
	if res.Company != nil && *res.Company != (model.CompanyInfo{}) {
		out.CompanyInfo = res.Company
	}
	if res.Handle != nil {
		out.ManusTaskID = res.Handle.TaskID
		out.ManusTaskURL = res.Handle.TaskURL
	}
	return out
}

// GetSignal handles GET /api/signals/{id}.
func (h *Handlers) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sig, err := h.store.GetSignal(r.Context(), id)
	if err != nil {
		respondFailure(w, err, "get signal failed", id)
		return
	}
	if sig == nil {
		respondError(w, http.StatusNotFound, "signal not found")
		return
	}
	respondJSON(w, http.StatusOK, sig)
}

// GetEnrichment handles GET /api/signals/{id}/enrichment.
func (h *Handlers) GetEnrichment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetEnrichmentBySignal(r.Context(), id)
	if err != nil {
		respondFailure(w, err, "get enrichment failed", id)
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "enrichment not found")
		return
	}
	contacts, err := h.store.ListContacts(r.Context(), id)
	if err != nil {
		respondFailure(w, err, "list contacts failed", id)
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	respondJSON(w, http.StatusOK, enrichmentView{Enrichment: rec, Contacts: contacts})
}

// ListContacts handles GET /api/signals/{id}/contacts.
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sig, err := h.store.GetSignal(r.Context(), id)
	if err != nil {
		respondFailure(w, err, "get signal failed", id)
		return
	}
	if sig == nil {
		respondError(w, http.StatusNotFound, "signal not found")
		return
	}
	contacts, err := h.store.ListContacts(r.Context(), id)
	if err != nil {
		respondFailure(w, err, "list contacts failed", id)
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"contacts": contacts, "count": len(contacts)})
}

// UpdateOutreach handles PATCH /api/contacts/{id}/outreach.
func (h *Handlers) UpdateOutreach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		OutreachStatus model.OutreachStatus `json:"outreach_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.OutreachStatus.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid outreach_status")
		return
	}

	err := h.store.UpdateContactOutreach(r.Context(), id, req.OutreachStatus)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "contact not found")
		return
	}
	if err != nil {
		respondFailure(w, err, "update outreach failed", id)
		return
	}

	c, err := h.store.GetContact(r.Context(), id)
	if err != nil {
		respondFailure(w, err, "get contact failed", id)
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "contact not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Health pings the store and reports provider breaker states.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok"}
	if h.breakers != nil {
		out["providers"] = h.breakers.States()
	}
	if err := h.store.Ping(r.Context()); err != nil {
		zap.L().Warn("health: store ping failed", zap.Error(err))
		out["status"] = "degraded"
		out["store"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, out)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Monitoring returns the current workflow health snapshot.
func (h *Handlers) Monitoring(w http.ResponseWriter, r *http.Request) {
	if h.collector == nil {
		respondError(w, http.StatusNotFound, "monitoring not enabled")
		return
	}
	snap, err := h.collector.Collect(r.Context())
	if err != nil {
		respondFailure(w, err, "collect snapshot failed", "")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// respondFailure maps domain errors onto status codes: not found is 404,
// anything else is logged and reported as 500.
func respondFailure(w http.ResponseWriter, err error, msg, id string) {
	if errors.Is(err, enrichment.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	zap.L().Error("api: "+msg, zap.String("id", id), zap.Error(err))
	respondError(w, http.StatusInternalServerError, msg)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
