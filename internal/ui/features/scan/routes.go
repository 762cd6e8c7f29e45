package scan

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/mclineage/internal/ui/features/common"
	"github.com/leapstack-labs/mclineage/internal/ui/notifier"
	"github.com/starfederation/datastar-go/datastar"
)

// RunSignals is patched into connected front ends after every scan.
type RunSignals struct {
	LastRun string `json:"lastRun"`
}

// SetupRoutes registers the scan trigger and the run event stream.
func SetupRoutes(router chi.Router, runner *Runner, notify *notifier.Notifier) {
	router.Post("/api/scan", func(w http.ResponseWriter, r *http.Request) {
		res, err := runner.Run(r.Context())
		if err != nil {
			common.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		common.JSON(w, http.StatusOK, res)
	})

	router.Get("/api/events", func(w http.ResponseWriter, r *http.Request) {
		// subscribe before the stream opens so no run is missed
		updates := notify.Subscribe()
		defer notify.Unsubscribe(updates)

		sse := datastar.NewSSE(w, r)
		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-updates:
				if err := sse.MarshalAndPatchSignals(RunSignals{LastRun: id}); err != nil {
					return
				}
			}
		}
	})
}
