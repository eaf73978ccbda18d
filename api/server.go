/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/pricing/*        Co-staffed split computation
  /api/tiers/*          Tier resolution, status, config versions
  /api/relationships    Preferred opt-in/opt-out
  /api/appointments/*   Early-access visibility gate
  /api/cancellations/*  Fee/refund evaluation
  /api/payouts/*        Payout lifecycle and queries
  /api/admin/*          Batch triggers

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Pricing routes
		r.Route("/pricing", func(r chi.Router) {
			r.Post("/split", h.ComputeSplit)
		})

		// Tier routes
		r.Route("/tiers", func(r chi.Router) {
			r.Post("/resolve", h.ResolveTier)
			r.Get("/workers/{id}", h.GetTierStatus)
			r.Post("/workers/{id}/recompute", h.RecomputeTierStatus)

			r.Route("/config", func(r chi.Router) {
				r.Get("/active", h.GetActiveConfig)
				r.Get("/history", h.GetConfigHistory)
				r.Post("/", h.ActivateConfig)
			})
		})

		// Relationship routes
		r.Route("/relationships", func(r chi.Router) {
			r.Post("/", h.OptInPreferred)
			r.Delete("/", h.OptOutPreferred)
		})

		// Appointment routes
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/visibility", h.CheckVisibility)
		})

		// Cancellation routes
		r.Route("/cancellations", func(r chi.Router) {
			r.Post("/evaluate", h.EvaluateCancellation)
			r.Post("/collect", h.CollectCancellationFee)
		})

		// Payout routes
		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", h.QueryPayouts)
			r.Post("/", h.CreatePayout)
			r.Get("/{id}", h.GetPayout)
			r.Post("/{id}/transition", h.TransitionPayout)
		})

		// Pending totals
		r.Get("/workers/{id}/pending", h.WorkerPendingTotals)
		r.Get("/owners/{id}/pending", h.OwnerPendingTotals)

		// Bill routes
		r.Get("/users/{id}/bill", h.GetBill)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/process-payouts", h.ProcessPayouts)
		})
	})

	return r
}
