package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/chatmem/internal/telemetry"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.Middleware)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.HandlerFor(telemetry.Registry(g.appCtx), promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.logger))
		}
		r.Get("/status", g.handleStatus())
		r.Get("/modules", g.handleGetAllModules())

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", g.handleCreateSession())
			r.Get("/", g.handleListSessions())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", g.handleGetSession())
				r.Delete("/", g.handleDeleteSession())
				r.Post("/messages", g.handleAddMessage())
				r.Post("/context", g.handleGetContext())
				r.Post("/compact", g.handleCompact())
			})
		})
		r.Post("/budget/validate", g.handleValidateBudget())
		r.Get("/owners/{owner}/stats", g.handleOwnerStats())
	})

	return r
}
