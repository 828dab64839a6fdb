/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the caseworker frontend

ROUTE GROUPS:
  /api/cases/{caseID}/*   Chain, timeline, batches and strategies per case
  /api/batches/{id}/*     Batch lifecycle
  /api/compare            Timeline drift between two cases

SECURITY NOTE:
  No authentication middleware. Callers are trusted internal services.

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
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/cases/{caseID}", func(r chi.Router) {
			r.Get("/lines", h.GetLines)
			r.Get("/timeline", h.GetTimeline)
			r.Get("/batches", h.ListBatches)

			r.Post("/grants", h.Grant)
			r.Post("/pauses", h.Pause)
			r.Post("/resumptions", h.Resume)
			r.Post("/terminations", h.Terminate)
		})

		r.Route("/batches/{batchID}", func(r chi.Router) {
			r.Get("/", h.GetBatch)
			r.Post("/submit", h.SubmitBatch)
			r.Post("/receipt", h.RecordReceipt)
		})

		r.Post("/compare", h.Compare)
	})

	return r
}
