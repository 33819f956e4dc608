package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sentinel-core/internal/auth"
)

// APIPrefix is the versioned alias the API is also mounted under.
const APIPrefix = "/api/v1"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// The API is served at the root and again under /api/v1. The JSON status
	// snapshot only lives under /api/v1 because /metrics is the scrape target.
	r.Group(s.apiRoutes)
	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/metrics", s.handleMetrics)
		s.apiRoutes(r)
	})

	return r
}

// apiRoutes registers the public and guarded API operations on r.
func (s *Server) apiRoutes(r chi.Router) {
	// Public
	r.Get("/health", s.handleHealth)
	r.Post("/auth/login", s.handleLogin)

	// WebSocket authenticates with a ticket from /auth/ws-ticket.
	r.Get("/ws", s.handleWebSocket)

	// Any authenticated principal
	r.With(s.requireRoles(auth.RoleSet{})).Get("/auth/me", s.handleMe)
	r.With(s.requirePermission(auth.PermEventsSubscribe)).Post("/auth/ws-ticket", s.handleWSTicket)

	// Group rather than Use on the sub-router so the guard sees the
	// full route pattern.
	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermUserManage))
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})
	})

	r.Route("/resources", func(r chi.Router) {
		r.With(s.requirePermission(auth.PermResourceRead)).Get("/", s.handleListResources)
		r.With(s.requirePermission(auth.PermResourceWrite)).Post("/", s.handleCreateResource)
		r.With(s.requirePermission(auth.PermResourceRead)).Get("/{id}", s.handleGetResource)
		r.With(s.requirePermission(auth.PermResourceWrite)).Put("/{id}", s.handleUpdateResource)
		r.With(s.requirePermission(auth.PermResourceDelete)).Delete("/{id}", s.handleDeleteResource)
	})

	r.Route("/access-logs", func(r chi.Router) {
		r.With(s.requirePermission(auth.PermAccessLogRead)).Get("/", s.handleListAccessLogs)
		r.With(s.requirePermission(auth.PermAccessLogWrite)).Post("/", s.handleRecordAccess)
	})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
