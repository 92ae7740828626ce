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
  /api/leaves/*     Leave requests and approval actions
  /api/employees/*  Balance and allocation views
  /api/admin/*      Allocation processing

SECURITY NOTE:
  Actor identity comes from X-Actor-Id/X-Actor-Role headers; an auth
  gateway in front of this service is expected to set them.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Leave routes
		r.Route("/leaves", func(r chi.Router) {
			r.Post("/", h.ApplyLeave)
			r.Get("/{id}", h.GetLeave)
			r.Post("/{id}/status", h.UpdateLeaveStatus)
		})

		// Employee views
		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}/leave-balance", h.GetLeaveBalance)
			r.Get("/{id}/leave-allocations", h.GetLeaveAllocations)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/allocations/process", h.ProcessAllocations)
		})
	})

	return r
}
