/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for operator tooling

ROUTE GROUPS:
  /api/profiles/*       Counterparty profiles, ledgers, transactions
  /api/transactions/*   Reversals
  /api/settlements/*    Settlement lifecycle
  /api/ledger/*         Operator-wide aggregates
  /api/audit            Audit trail
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness probe

SECURITY NOTE:
  No authentication middleware. Callers identify themselves via the
  X-Actor header for auditing; deploy behind a trusted boundary.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Profile routes
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.CreateProfile)
			r.Get("/{id}", h.GetProfile)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Post("/{id}/transactions", h.RecordTransaction)
			r.Post("/{id}/settlements", h.CreateSettlement)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/{id}/reverse", h.ReverseTransaction)
		})

		// Settlement lifecycle routes
		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", h.ListSettlements)
			r.Get("/{id}", h.GetSettlement)
			r.Post("/{id}/sent", h.MarkSettlementSent)
			r.Post("/{id}/failed", h.MarkSettlementFailed)
			r.Post("/{id}/retry", h.RetrySettlement)
		})

		// Operator-wide aggregates
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/overview", h.GetOverview)
		})

		// Audit trail
		r.Get("/audit", h.GetAuditTrail)
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
