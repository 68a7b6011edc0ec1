package main

import (
	"github.com/go-chi/chi/v5"

	"github.com/haldis-labs/reverseproxy-lb/internal/admin"
	"github.com/haldis-labs/reverseproxy-lb/internal/ingress"
	"github.com/haldis-labs/reverseproxy-lb/internal/obsmetrics"
)

// setupRouter mounts the admin sub-router ahead of the catch-all ingress
// route, so /admin/* paths are matched first and never reach the
// forwarding engine.
func setupRouter(ingressHandler *ingress.Handler, adminHandler *admin.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Route("/admin", func(sub chi.Router) {
		sub.Get("/health", adminHandler.Health)
		sub.Get("/strategy", adminHandler.Strategy)
		sub.Get("/stats", adminHandler.Stats)
		sub.Get("/discovery", adminHandler.Discovery)
	})

	r.Get("/metrics", obsmetrics.Handler().ServeHTTP)

	r.HandleFunc("/*", ingressHandler.ServeHTTP)

	return r
}
