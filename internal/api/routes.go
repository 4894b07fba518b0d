// Package api exposes the enrichment workflow over HTTP.
package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/enrichment"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/monitoring"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

// Requester starts enrichment for a signal.
type Requester interface {
	RequestEnrichment(ctx context.Context, signalID string) (*enrichment.RequestResult, error)
}

// Collector produces a workflow health snapshot.
type Collector interface {
	Collect(ctx context.Context) (*monitoring.Snapshot, error)
}

// Handlers serves the enrichment endpoints.
type Handlers struct {
	store     store.Store
	requester Requester
	checker   enrichment.StatusChecker
	breakers  *resilience.Breakers
	collector Collector
}

// NewHandlers creates the handler set. breakers may be nil.
func NewHandlers(st store.Store, req Requester, checker enrichment.StatusChecker, breakers *resilience.Breakers) *Handlers {
	return &Handlers{store: st, requester: req, checker: checker, breakers: breakers}
}

// SetCollector enables GET /api/monitoring.
func (h *Handlers) SetCollector(c Collector) {
	h.collector = c
}

// NewRouter wires middleware and routes. The /functions paths keep the URLs
// the web client already calls.
func NewRouter(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "apikey", "x-client-info"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/functions", func(r chi.Router) {
		r.Post("/enrichment-request", h.RequestEnrichment)
		r.Post("/status-check", h.CheckStatus)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/enrichment/request", h.RequestEnrichment)
		r.Post("/enrichment/status", h.CheckStatus)

		r.Get("/signals/{id}", h.GetSignal)
		r.Get("/signals/{id}/enrichment", h.GetEnrichment)
		r.Get("/signals/{id}/contacts", h.ListContacts)

		r.Patch("/contacts/{id}/outreach", h.UpdateOutreach)

		r.Get("/monitoring", h.Monitoring)
	})

	return r
}
