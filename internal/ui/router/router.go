// Package router sets up HTTP routes for the UI server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/mclineage/internal/state"
	graphFeature "github.com/leapstack-labs/mclineage/internal/ui/features/graph"
	runsFeature "github.com/leapstack-labs/mclineage/internal/ui/features/runs"
	scanFeature "github.com/leapstack-labs/mclineage/internal/ui/features/scan"
	"github.com/leapstack-labs/mclineage/internal/ui/notifier"
)

// SetupRoutes configures all routes for the UI server.
// A nil runner leaves scanning disabled.
func SetupRoutes(
	router chi.Router,
	store state.Store,
	runner *scanFeature.Runner,
	notify *notifier.Notifier,
) {
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	runsFeature.SetupRoutes(router, store)
	graphFeature.SetupRoutes(router, store)

	if runner != nil {
		scanFeature.SetupRoutes(router, runner, notify)
	}
}
