// Package runs provides run history handlers.
package runs

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/mclineage/internal/state"
)

// SetupRoutes registers the run history routes.
func SetupRoutes(router chi.Router, store state.Store) {
	handlers := NewHandlers(store)

	router.Route("/api/runs", func(r chi.Router) {
		r.Get("/", handlers.List)
		r.Get("/latest", handlers.Latest)
		r.Get("/{id}", handlers.Detail)
	})
}
