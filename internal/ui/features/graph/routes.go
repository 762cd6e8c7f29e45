// Package graph serves stored lineage graphs as JSON and CSV.
package graph

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/mclineage/internal/state"
)

// SetupRoutes registers the graph routes.
func SetupRoutes(router chi.Router, store state.Store) {
	handlers := NewHandlers(store)

	router.Route("/api/graph", func(r chi.Router) {
		r.Get("/", handlers.Graph)
		r.Get("/nodes.csv", handlers.NodesCSV)
		r.Get("/edges.csv", handlers.EdgesCSV)
		r.Get("/lineage/{ref}", handlers.Lineage)
	})
}
