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
  /api/tariff           Service-code catalog
  /api/allowances       Care-grade allowances
  /api/clients/*        Client management, quota sets, runs
  /api/quotasets/*      Quota set detail/delete
  /api/reconcile        Run the reconciliation engine
  /api/runs/*           Stored run results
  /api/reset            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		// Reference data
		r.Get("/tariff", h.ListTariff)
		r.Get("/allowances", h.ListAllowances)

		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Delete("/{id}", h.DeleteClient)
			r.Get("/{id}/quotas", h.ListQuotaSets)
			r.Post("/{id}/quotas", h.SaveQuotaSet)
			r.Post("/{id}/quotas/upload", h.UploadQuotaSet)
			r.Get("/{id}/runs", h.ListRuns)
		})

		// Quota set routes
		r.Route("/quotasets", func(r chi.Router) {
			r.Get("/{id}", h.GetQuotaSet)
			r.Delete("/{id}", h.DeleteQuotaSet)
		})

		// Reconciliation routes
		r.Post("/reconcile", h.Reconcile)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/{id}", h.GetRun)
		})

		// Dev routes
		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
